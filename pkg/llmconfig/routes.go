package llmconfig

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// RouteDescriptor describes one registered route as shown to the model.
type RouteDescriptor struct {
	Path   string   `json:"path"`
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
}

// RouteTable lists the host's routes in a stable order. It is called once per
// /_llm/config request; results are not cached.
type RouteTable interface {
	ListRoutes() []RouteDescriptor
}

// RoutesFunc adapts a plain function to RouteTable.
type RoutesFunc func() []RouteDescriptor

func (f RoutesFunc) ListRoutes() []RouteDescriptor { return f() }

// StackEntry is either a single route or a nested router.
type StackEntry struct {
	route *RouteDescriptor
	sub   Stack
}

// Route wraps a descriptor as a stack entry. Path params are derived from the
// path when d.Params is nil.
func Route(d RouteDescriptor) StackEntry {
	d.Method = strings.ToUpper(strings.TrimSpace(d.Method))
	if d.Params == nil {
		d.Params = ParsePathParams(d.Path)
	}
	return StackEntry{route: &d}
}

// SubRouter groups entries that were mounted together.
func SubRouter(entries ...StackEntry) StackEntry {
	return StackEntry{sub: Stack(entries)}
}

func (e StackEntry) IsSubRouter() bool { return e.route == nil }

// Stack is an ordered routing stack. Nested routers are walked at any depth.
type Stack []StackEntry

func (s Stack) ListRoutes() []RouteDescriptor {
	out := make([]RouteDescriptor, 0, len(s))
	return s.appendRoutes(out)
}

func (s Stack) appendRoutes(out []RouteDescriptor) []RouteDescriptor {
	for _, e := range s {
		if e.route != nil {
			out = append(out, *e.route)
			continue
		}
		out = e.sub.appendRoutes(out)
	}
	return out
}

type ginRoutes struct {
	engine *gin.Engine
}

// GinRoutes reads the route table of a gin engine. gin flattens groups, so
// every route carries its full path.
//
// gin keeps one route tree per method and does not remember declaration
// order, so the listing is grouped by method: methods appear in the order
// they were first registered, and routes within a method follow gin's tree
// walk. The order is stable for an unchanged engine. Use a Stack with
// WithRouteTable when the prompt must list routes in declaration order.
func GinRoutes(engine *gin.Engine) RouteTable {
	return ginRoutes{engine: engine}
}

func (g ginRoutes) ListRoutes() []RouteDescriptor {
	if g.engine == nil {
		return nil
	}
	infos := g.engine.Routes()
	out := make([]RouteDescriptor, 0, len(infos))
	for _, ri := range infos {
		out = append(out, RouteDescriptor{
			Path:   ri.Path,
			Method: strings.ToUpper(ri.Method),
			Params: ParsePathParams(ri.Path),
		})
	}
	return out
}

// ParsePathParams returns the names of ":name" and "*name" segments in
// declaration order.
func ParsePathParams(path string) []string {
	var params []string
	for _, seg := range strings.Split(path, "/") {
		if len(seg) < 2 {
			continue
		}
		if seg[0] == ':' || seg[0] == '*' {
			params = append(params, seg[1:])
		}
	}
	return params
}

// FormatRoutes renders one "<METHOD> <path>" line per route, with
// " (params: a, b)" appended when the route captures path parameters.
func FormatRoutes(routes []RouteDescriptor) string {
	lines := make([]string, 0, len(routes))
	for _, r := range routes {
		line := r.Method + " " + r.Path
		if len(r.Params) > 0 {
			line += " (params: " + strings.Join(r.Params, ", ") + ")"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// BuildPrompt substitutes the first {{routes}} and the first {{userInput}}
// placeholder. The input is inserted as-is.
func BuildPrompt(tmpl string, routes []RouteDescriptor, input string) string {
	out := strings.Replace(tmpl, "{{routes}}", FormatRoutes(routes), 1)
	return strings.Replace(out, "{{userInput}}", input, 1)
}
