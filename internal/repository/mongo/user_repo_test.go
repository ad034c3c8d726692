package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/and161185/nanocloud/internal/errs"
	"github.com/and161185/nanocloud/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestUserRepo_Mongo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	u := &model.User{
		ID:          uuid.Must(uuid.NewV4()),
		Email:       "ann@example.com",
		DisplayName: "Ann",
		PwdHash:     []byte("hash"),
		SaltAuth:    []byte("salt"),
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}

	mt.Run("create and duplicate", func(mt *mtest.T) {
		r := NewUserRepo(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateWriteErrorsResponse(mtest.WriteError{Index: 0, Code: 11000, Message: "dup email"}),
		)
		require.NoError(mt, r.Create(context.Background(), u))
		require.ErrorIs(mt, r.Create(context.Background(), u), errs.ErrConflict)
	})

	mt.Run("get by email", func(mt *mtest.T) {
		r := NewUserRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "nanocloud.users", mtest.FirstBatch, asBSON(mt.T, toUserDoc(u))))

		got, err := r.GetByEmail(context.Background(), u.Email)
		require.NoError(mt, err)
		require.Equal(mt, u.ID, got.ID)
		require.Equal(mt, u.PwdHash, got.PwdHash)
	})

	mt.Run("get by id not found", func(mt *mtest.T) {
		r := NewUserRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "nanocloud.users", mtest.FirstBatch))

		_, err := r.GetByID(context.Background(), u.ID)
		require.ErrorIs(mt, err, errs.ErrNotFound)
	})
}
