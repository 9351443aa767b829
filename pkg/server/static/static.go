package static

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed assets/*
var assetFS embed.FS

// Templates 解析内嵌的运维界面模板
func Templates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"timefmt": formatTime,
	}).ParseFS(templateFS, "templates/*.html")
}

// GetFileSystem 返回内嵌的静态资源
func GetFileSystem() http.FileSystem {
	fsys, err := fs.Sub(assetFS, "assets")
	if err != nil {
		panic(err)
	}
	return http.FS(fsys)
}

// Register 挂载模板与 /static 资源
func Register(r *gin.Engine) error {
	tmpl, err := Templates()
	if err != nil {
		return err
	}
	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", GetFileSystem())
	return nil
}

func formatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04:05")
	case *time.Time:
		if t == nil || t.IsZero() {
			return "-"
		}
		return t.UTC().Format("2006-01-02 15:04:05")
	default:
		return "-"
	}
}
