// Package portal is the local collection endpoint: it serves the
// rendered form and accepts exactly one completing submission for the
// session that owns it.
package portal

import (
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pratikwayal01/bore-interactive-inputs/internal/fields"
	"github.com/pratikwayal01/bore-interactive-inputs/templates"
)

const (
	FormPath   = "/"
	ConfigPath = "/api/config"
	SubmitPath = "/api/submit"
	UploadPath = "/api/upload"
)

const (
	uploadLimit   = 100 << 20 // per request
	shutdownGrace = 3 * time.Second
)

// Session is the narrow view of the session controller the endpoint
// drives. Submission hand-off goes through Submit; everything else is
// read-only presentation state.
type Session interface {
	Title() string
	Fields() fields.Set
	Remaining() time.Duration
	StagingDir() string
	Closed() bool
	Submit(raw map[string]any) error
	RedirectURL() string
}

// Server wraps the fiber app serving one session.
type Server struct {
	app  *fiber.App
	sess Session
}

func New(sess Session) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             uploadLimit,
		Views:                 templates.NewEngine(),
	})

	srv := &Server{app: app, sess: sess}

	app.Get(FormPath, srv.formHandler)
	app.Get(ConfigPath, srv.configHandler)
	app.Post(UploadPath, srv.uploadHandler)
	app.Post(SubmitPath, srv.submitHandler)

	return srv
}

// Serve blocks on the supplied listener until Shutdown.
func (srv *Server) Serve(ln net.Listener) error {
	return srv.app.Listener(ln)
}

func (srv *Server) Shutdown() error {
	return srv.app.ShutdownWithTimeout(shutdownGrace)
}

// App exposes the fiber app for in-process request tests.
func (srv *Server) App() *fiber.App {
	return srv.app
}
