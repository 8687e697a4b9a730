// Package templates carries the embedded portal documents served by
// the collection endpoint.
package templates

import (
	"embed"
	"net/http"

	"github.com/gofiber/template/html/v2"
)

// FormTemp is the name of the interactive form document.
const FormTemp = "form"

//go:embed *.html
var fs embed.FS

// NewEngine returns the fiber view engine backed by the embedded
// templates.
func NewEngine() *html.Engine {
	return html.NewFileSystem(http.FS(fs), ".html")
}
