package server

import (
	"ctchen222/blog/internal/api/controller"
	"ctchen222/blog/internal/api/middleware"
	"ctchen222/blog/internal/api/response"
	"ctchen222/blog/internal/storage"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxUploadMemory bounds how much of a multipart body is kept in memory;
// the rest spills to temporary files.
const maxUploadMemory = 8 << 20

// Server wires the HTTP routes to their controllers.
type Server struct {
	engine *gin.Engine
}

// Deps are the collaborators the routes dispatch to.
type Deps struct {
	Users      *controller.UserController
	Posts      *controller.PostController
	Verifier   middleware.TokenVerifier
	Storage    storage.Storage
	CORSOrigin string
}

// NewServer builds the gin engine and registers every route.
func NewServer(deps Deps) *Server {
	engine := gin.New()
	engine.MaxMultipartMemory = maxUploadMemory
	engine.Use(
		gin.Recovery(),
		middleware.RequestLogger(),
		middleware.CORS(deps.CORSOrigin),
	)

	s := &Server{engine: engine}
	s.registerHandlers(deps)
	return s
}

func (s *Server) registerHandlers(deps Deps) {
	r := s.engine
	requireAuth := middleware.AuthRequired(deps.Verifier)

	r.GET("/healthz", func(c *gin.Context) {
		response.SuccessResponse(c, "ok")
	})

	r.POST("/register", deps.Users.Register)
	r.POST("/login", deps.Users.Login)
	r.GET("/profile", requireAuth, deps.Users.Profile)
	r.POST("/logout", deps.Users.Logout)

	r.POST("/post", requireAuth, deps.Posts.Create)
	r.PUT("/post", requireAuth, deps.Posts.Update)
	r.GET("/post", deps.Posts.List)
	r.GET("/post/:id", deps.Posts.Get)

	deps.Storage.Mount(r)
}

// Engine exposes the underlying gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Handler returns the engine wrapped with OpenTelemetry HTTP instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.engine, "http.server",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
