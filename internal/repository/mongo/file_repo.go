package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/and161185/nanocloud/internal/errs"
	"github.com/and161185/nanocloud/internal/model"
	"github.com/and161185/nanocloud/internal/repository"
	"github.com/gofrs/uuid/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultUpdateAttempts bounds compare-and-swap retries in Update.
const DefaultUpdateAttempts = 5

// FileRepo implements FileRepository on a MongoDB collection.
// Sharing updates are guarded by the document version field.
type FileRepo struct {
	coll     *mongo.Collection
	attempts int
}

// NewFileRepo constructs a file repository over db.
func NewFileRepo(db *mongo.Database) *FileRepo {
	return &FileRepo{coll: db.Collection(filesCollection), attempts: DefaultUpdateAttempts}
}

// Create inserts a new file document.
func (r *FileRepo) Create(ctx context.Context, f *model.File) error {
	d := toFileDoc(f)
	d.Version = 1
	if _, err := r.coll.InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return errs.ErrConflict
		}
		return fmt.Errorf("insert file: %w", err)
	}
	f.Version = 1
	return nil
}

// GetByID loads a file by id.
func (r *FileRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.File, error) {
	return r.findOne(ctx, bson.M{"_id": id.String()})
}

// GetByShareToken loads the file holding token.
func (r *FileRepo) GetByShareToken(ctx context.Context, token string) (*model.File, error) {
	return r.findOne(ctx, bson.M{"shareToken": token})
}

// ListByOwner returns owned files, newest first, optionally filtered by name.
func (r *FileRepo) ListByOwner(ctx context.Context, owner uuid.UUID, query string) ([]model.File, error) {
	filter := bson.M{"owner": owner.String()}
	if query != "" {
		filter["originalFilename"] = primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	}
	return r.find(ctx, filter)
}

// ListSharedWith returns files listing userID as collaborator, newest first.
func (r *FileRepo) ListSharedWith(ctx context.Context, userID uuid.UUID) ([]model.File, error) {
	return r.find(ctx, bson.M{"collaborators.userId": userID.String()})
}

// Update applies fn to the latest document and writes it back only if no
// other writer bumped the version in between, retrying a bounded number of times.
func (r *FileRepo) Update(ctx context.Context, id uuid.UUID, fn repository.UpdateFunc) (*model.File, error) {
	for attempt := 0; attempt < r.attempts; attempt++ {
		cur, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		next := *cur
		next.Collaborators = slices.Clone(cur.Collaborators)
		if err := fn(&next); err != nil {
			return nil, err
		}

		set := bson.M{
			"isPublic":      next.IsPublic,
			"collaborators": toCollaboratorDocs(next.Collaborators),
			"version":       cur.Version + 1,
		}
		if next.ShareToken != "" {
			set["shareToken"] = next.ShareToken
		}

		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": id.String(), "version": cur.Version},
			bson.M{"$set": set})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return nil, fmt.Errorf("share token: %w", errs.ErrConflict)
			}
			return nil, fmt.Errorf("update file: %w", err)
		}
		if res.MatchedCount == 0 {
			continue
		}

		cur.IsPublic = next.IsPublic
		cur.ShareToken = next.ShareToken
		cur.Collaborators = next.Collaborators
		cur.Version++
		return cur, nil
	}
	return nil, fmt.Errorf("file %s: %w", id, errs.ErrVersionConflict)
}

// Delete removes a file document.
func (r *FileRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if res.DeletedCount == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *FileRepo) findOne(ctx context.Context, filter bson.M) (*model.File, error) {
	var d fileDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("find file: %w", err)
	}
	return d.model()
}

func (r *FileRepo) find(ctx context.Context, filter bson.M) ([]model.File, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "uploadDate", Value: -1},
		{Key: "_id", Value: 1},
	})
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find files: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []fileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode files: %w", err)
	}

	out := make([]model.File, 0, len(docs))
	for _, d := range docs {
		f, err := d.model()
		if err != nil {
			return nil, err
		}
		out = append(out, *f)
	}
	return out, nil
}
