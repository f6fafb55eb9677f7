package rest

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-tasks"
)

// Options carries the collaborators the HTTP server wires together.
type Options struct {
	Repo       tasks.RepositoryManager
	Auther     *tasks.Auther
	Policy     tasks.PasswordPolicy
	Mailer     tasks.Mailer
	Window     time.Duration
	AuthScheme string
	Logger     tasks.Logger
	AppName    string
	// DeterministicIDs makes registration derive account ids from the
	// email address.
	DeterministicIDs bool
}

// Server is the HTTP front of the application.
type Server struct {
	app    *fiber.App
	logger tasks.Logger
}

// NewServer builds the fiber application and mounts every route group
// under /api/v1.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = tasks.DefaultLogger()
	}
	if opts.Window <= 0 {
		opts.Window = tasks.DefaultResetTokenWindow
	}
	if opts.Mailer == nil {
		opts.Mailer = tasks.NewLogMailer(opts.Logger)
	}

	app := fiber.New(fiber.Config{
		AppName:      opts.AppName,
		ErrorHandler: NewErrorHandler(opts.Logger),
	})

	s := &Server{
		app:    app,
		logger: opts.Logger,
	}

	s.registerRoutes(opts)

	return s
}

func (s *Server) registerRoutes(opts Options) {
	requireAuth := RequireAuth(opts.Repo, opts.Auther.TokenService(), opts.AuthScheme)
	requireAdmin := RequireAdmin()

	api := s.app.Group("/api/v1")

	authController := &AuthController{
		Auther:           opts.Auther,
		Repo:             opts.Repo,
		Policy:           opts.Policy,
		Mailer:           opts.Mailer,
		Window:           opts.Window,
		Logger:           opts.Logger,
		DeterministicIDs: opts.DeterministicIDs,
	}

	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)
	auth.Post("/register", authController.Register)
	auth.Post("/forgotpassword", authController.ForgotPassword)
	auth.Put("/resetpassword/:resetToken", authController.ResetPassword)
	auth.Put("/changepassword", requireAuth, authController.ChangePassword)

	tasksController := &TasksController{
		Repo:   opts.Repo,
		Logger: opts.Logger,
	}

	taskRoutes := api.Group("/tasks", requireAuth)
	taskRoutes.Get("/", tasksController.List)
	taskRoutes.Post("/", tasksController.Create)
	taskRoutes.Get("/:id", tasksController.Get)
	taskRoutes.Put("/:id", tasksController.Update)
	taskRoutes.Delete("/:id", tasksController.Delete)

	usersController := &UsersController{
		Repo:   opts.Repo,
		Policy: opts.Policy,
		Logger: opts.Logger,
	}

	userRoutes := api.Group("/users", requireAuth, requireAdmin)
	userRoutes.Get("/", usersController.List)
	userRoutes.Post("/", usersController.Create)
	userRoutes.Get("/:id", usersController.Get)
	userRoutes.Put("/:id", usersController.Update)
	userRoutes.Delete("/:id", usersController.Delete)
}

// App exposes the underlying fiber application, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen blocks serving requests on the given address.
func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening on %s", addr)
	return s.app.Listen(addr)
}

// Shutdown drains in-flight requests before returning.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
