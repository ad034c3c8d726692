// Package httpserver exposes the nanocloud REST API handlers.
package httpserver

import (
	"net/http"
	"time"

	"github.com/and161185/nanocloud/internal/convert"
	"github.com/and161185/nanocloud/internal/model"
	"github.com/and161185/nanocloud/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// Server wires services into HTTP handlers.
type Server struct {
	auth    service.AuthService
	files   service.FileService
	sharing service.SharingService
	summary service.SummaryService
	log     *zap.Logger
}

// New constructs an HTTP server with injected services.
func New(auth service.AuthService, files service.FileService, sharing service.SharingService, summary service.SummaryService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{auth: auth, files: files, sharing: sharing, summary: summary, log: log}
}

// Handler builds the router. An empty origin list disables CORS.
func (s *Server) Handler(allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(Recover(s.log), Logging(s.log))
	if len(allowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     allowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", LegacyTokenHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	authed := RequireAuth(s.auth)
	api := r.Group("/api")

	a := api.Group("/auth")
	a.POST("/register", s.register)
	a.POST("/login", s.login)
	a.GET("/me", authed, s.me)

	f := api.Group("/files", authed)
	f.GET("", s.listFiles)
	f.GET("/shared", s.listShared)
	f.POST("/generate-upload-url", s.generateUploadURL)
	f.POST("/finalize-upload", s.finalizeUpload)
	f.GET("/download/:id", s.downloadURL)
	f.GET("/:id", s.getFile)
	f.DELETE("/:id", s.deleteFile)

	api.GET("/sharing/public/:shareToken", s.resolvePublic)
	sh := api.Group("/sharing", authed)
	sh.GET("/:fileId", s.sharingInfo)
	sh.POST("/:fileId/public", s.setPublic)
	sh.POST("/:fileId/collaborators", s.addCollaborator)
	sh.PATCH("/:fileId/collaborators/:userId", s.updateCollaborator)
	sh.DELETE("/:fileId/collaborators/:userId", s.removeCollaborator)

	api.POST("/ai/summarize", authed, s.summarize)

	return r
}

// pathUUID parses a path parameter, answering 400 on failure.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param(name))
	if err != nil {
		badRequest(c, "bad "+name)
		return uuid.Nil, false
	}
	return id, true
}

// --- Auth ---

func (s *Server) register(c *gin.Context) {
	var req convert.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	tok, u, err := s.auth.Register(c.Request.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		s.fail(c, "register", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToAuthResponse(tok, u))
}

func (s *Server) login(c *gin.Context) {
	var req convert.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	tok, u, err := s.auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		s.fail(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToAuthResponse(tok, u))
}

func (s *Server) me(c *gin.Context) {
	u, err := s.auth.Me(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, "me", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToUser(u))
}

// --- Files ---

func (s *Server) listFiles(c *gin.Context) {
	fs, err := s.files.List(c.Request.Context(), callerID(c), c.Query("q"))
	if err != nil {
		s.fail(c, "list files", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToFiles(fs))
}

func (s *Server) listShared(c *gin.Context) {
	fs, err := s.files.ListShared(c.Request.Context(), callerID(c))
	if err != nil {
		s.fail(c, "list shared", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToFiles(fs))
}

func (s *Server) generateUploadURL(c *gin.Context) {
	var req convert.UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	g, err := s.files.RequestUpload(c.Request.Context(), callerID(c), req.Filename, req.Filetype)
	if err != nil {
		s.fail(c, "generate upload url", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToUploadGrant(g))
}

func (s *Server) finalizeUpload(c *gin.Context) {
	var req convert.FinalizeUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	f, err := s.files.Create(c.Request.Context(), callerID(c), req.FileMeta())
	if err != nil {
		s.fail(c, "finalize upload", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToFile(*f))
}

func (s *Server) downloadURL(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	url, err := s.files.DownloadURL(c.Request.Context(), id, callerID(c))
	if err != nil {
		s.fail(c, "download url", err)
		return
	}
	c.JSON(http.StatusOK, convert.DownloadURL{DownloadURL: url})
}

func (s *Server) getFile(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	f, err := s.files.GetForCaller(c.Request.Context(), id, callerID(c))
	if err != nil {
		s.fail(c, "get file", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToFile(*f))
}

func (s *Server) deleteFile(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	if err := s.files.Delete(c.Request.Context(), id, callerID(c)); err != nil {
		s.fail(c, "delete file", err)
		return
	}
	c.JSON(http.StatusOK, convert.Message{Msg: "File deleted successfully"})
}

// --- Sharing ---

func (s *Server) sharingInfo(c *gin.Context) {
	id, ok := pathUUID(c, "fileId")
	if !ok {
		return
	}
	info, err := s.sharing.Info(c.Request.Context(), id, callerID(c))
	if err != nil {
		s.fail(c, "sharing info", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToSharingInfo(info))
}

func (s *Server) setPublic(c *gin.Context) {
	id, ok := pathUUID(c, "fileId")
	if !ok {
		return
	}
	var req convert.SetPublicRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsPublic == nil {
		badRequest(c, "isPublic is required")
		return
	}
	st, err := s.sharing.SetPublic(c.Request.Context(), id, callerID(c), *req.IsPublic)
	if err != nil {
		s.fail(c, "set public", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToSharingState(st))
}

func (s *Server) addCollaborator(c *gin.Context) {
	id, ok := pathUUID(c, "fileId")
	if !ok {
		return
	}
	var req convert.AddCollaboratorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	cs, err := s.sharing.AddCollaborator(c.Request.Context(), id, callerID(c), req.Email, model.Permission(req.Permission))
	if err != nil {
		s.fail(c, "add collaborator", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToCollaborators(cs))
}

func (s *Server) updateCollaborator(c *gin.Context) {
	id, ok := pathUUID(c, "fileId")
	if !ok {
		return
	}
	userID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}
	var req convert.PermissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid JSON body")
		return
	}
	cs, err := s.sharing.UpdateCollaboratorPermission(c.Request.Context(), id, callerID(c), userID, model.Permission(req.Permission))
	if err != nil {
		s.fail(c, "update collaborator", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToCollaborators(cs))
}

func (s *Server) removeCollaborator(c *gin.Context) {
	id, ok := pathUUID(c, "fileId")
	if !ok {
		return
	}
	userID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}
	cs, err := s.sharing.RemoveCollaborator(c.Request.Context(), id, callerID(c), userID)
	if err != nil {
		s.fail(c, "remove collaborator", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToCollaborators(cs))
}

func (s *Server) resolvePublic(c *gin.Context) {
	pf, err := s.sharing.ResolvePublicAccess(c.Request.Context(), c.Param("shareToken"))
	if err != nil {
		s.fail(c, "resolve public", err)
		return
	}
	c.JSON(http.StatusOK, convert.ToPublicFile(pf))
}

// --- AI ---

func (s *Server) summarize(c *gin.Context) {
	var req convert.SummarizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Request body must include `text` string.")
		return
	}
	out, err := s.summary.Summarize(c.Request.Context(), req.Text)
	if err != nil {
		s.fail(c, "summarize", err)
		return
	}
	c.JSON(http.StatusOK, convert.Summary{Summary: out})
}
