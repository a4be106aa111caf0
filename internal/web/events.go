package web

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"
)

// handleEvents streams the task list to the page. After every applied command (or reload
// from disk) the #tareas-main element is re-rendered for the client's view and patched in.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	p := parseViewParams(r.URL.Query())
	updates, cancel := s.d.Subscribe()
	defer cancel()

	sse := datastar.NewSSE(w, r)

	last := ""
	push := func() {
		html, rev, err := s.render(r, "main", p)
		if err != nil {
			_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
			return
		}
		if html == last || strings.TrimSpace(html) == "" {
			return
		}
		last = html
		_ = sse.PatchElements(html, datastar.WithSelector("#tareas-main"), datastar.WithMode(datastar.ElementPatchModeOuter))
		_ = sse.MarshalAndPatchSignals(map[string]any{"revision": rev})
	}
	push()

	keepAlive := time.NewTicker(s.cfg.KeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case _, ok := <-updates:
			if !ok {
				return
			}
			// Coalesce a burst into one render.
			for drained := false; !drained; {
				select {
				case _, ok := <-updates:
					if !ok {
						return
					}
				default:
					drained = true
				}
			}
			push()
		}
	}
}
