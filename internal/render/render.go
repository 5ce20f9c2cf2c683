// Package render renders outreach subjects and bodies with the Liquid
// template language.
package render

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/ignite/aicmo-cam/internal/domain"
)

// Renderer parses and caches Liquid templates.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template keyed by template hash
}

// New creates a renderer with the outreach filters registered.
func New() *Renderer {
	r := &Renderer{engine: liquid.NewEngine()}
	r.registerFilters()
	return r
}

func (r *Renderer) registerFilters() {
	// {{ first_name | default: "there" }}
	r.engine.RegisterFilter("default", func(value interface{}, fallback string) interface{} {
		if value == nil {
			return fallback
		}
		if s := strings.TrimSpace(fmt.Sprintf("%v", value)); s == "" || s == "<nil>" {
			return fallback
		}
		return value
	})

	r.engine.RegisterFilter("capitalize", func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
	})

	// {{ full_name | first_word }}
	r.engine.RegisterFilter("first_word", func(s string) string {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	})

	r.engine.RegisterFilter("escape", func(s string) string {
		return html.EscapeString(s)
	})
}

// Render renders tpl with vars. Missing variables render empty.
func (r *Renderer) Render(tpl string, vars map[string]interface{}) (string, error) {
	sum := sha256.Sum256([]byte(tpl))
	key := hex.EncodeToString(sum[:])

	if cached, ok := r.cache.Load(key); ok {
		out, err := cached.(*liquid.Template).RenderString(vars)
		if err != nil {
			return "", fmt.Errorf("render template: %w", err)
		}
		return out, nil
	}

	parsed, perr := r.engine.ParseString(tpl)
	if perr != nil {
		return "", fmt.Errorf("parse template: %w", perr)
	}
	r.cache.Store(key, parsed)

	out, err := parsed.RenderString(vars)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

// LeadVars returns the standard personalization bindings for a lead,
// overlaid with extra.
func LeadVars(l *domain.Lead, extra map[string]interface{}) map[string]interface{} {
	vars := map[string]interface{}{}
	if l != nil {
		vars["first_name"] = l.FirstName
		vars["last_name"] = l.LastName
		vars["full_name"] = l.FullName()
		vars["company"] = l.Company
		vars["title"] = l.Title
		vars["email"] = l.Email
	}
	for k, v := range extra {
		vars[k] = v
	}
	return vars
}
