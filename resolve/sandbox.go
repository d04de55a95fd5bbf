package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// DefaultTimeout bounds a single evaluation's wall-clock time unless the
// caller overrides it.
const DefaultTimeout = 5 * time.Second

// funcName is the zero-argument function the code body is wrapped into.
const funcName = "resolver_func"

var linePos = regexp.MustCompile(`resolver:(\d+):(\d+)`)

// sandbox compiles and runs one code body in a fresh ECMAScript runtime.
// A fresh runtime exposes only the ECMA builtins plus the util namespace:
// there is no require, no filesystem and no network, so a stray open() or
// import fails the script instead of reaching the host.
type sandbox struct {
	timeout time.Duration
}

// wrapCode turns the raw body into a program that defines resolver_func and
// invokes it, so the function's return value becomes the program result.
// Bodies with neither a return token nor a newline get the single-expression
// convenience prefix. The check runs on the untrimmed body: the joined block
// form carries a leading newline that marks it as a statement block.
func wrapCode(body string) string {
	if !strings.Contains(body, "return") && !strings.Contains(body, "\n") {
		body = "return " + body
	}
	body = strings.TrimSpace(body)
	var b strings.Builder
	b.WriteString("function " + funcName + "() {\n")
	for _, line := range strings.Split(body, "\n") {
		b.WriteString("    " + line + "\n")
	}
	b.WriteString("}\n" + funcName + "();")
	return b.String()
}

// run executes the body and returns the normalized result plus the wrapped
// source that was compiled. Errors carry the timeline-ready message.
func (s sandbox) run(body string) (any, string, error) {
	src := wrapCode(body)
	prog, err := goja.Compile("resolver", src, false)
	if err != nil {
		return nil, src, syntaxError(err, src)
	}

	vm := goja.New()
	if err := installUtil(vm); err != nil {
		return nil, src, fmt.Errorf("Error in script: SandboxError(line 0) %s", err)
	}
	if s.timeout > 0 {
		timer := time.AfterFunc(s.timeout, func() { vm.Interrupt("TIMEOUT") })
		defer timer.Stop()
	}

	v, err := vm.RunProgram(prog)
	if err != nil {
		return nil, src, scriptError(err)
	}
	return normalize(v), src, nil
}

// normalize converts an engine value into canonical JSON values (maps,
// slices, float64, string, bool, nil) so results compare and serialize the
// same whether they came from code or from plain input.
func normalize(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	exported := v.Export()
	b, err := json.Marshal(exported)
	if err != nil {
		return exported
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return exported
	}
	return out
}

func syntaxError(err error, src string) error {
	line, col := 0, 0
	detail := err.Error()
	if m := regexp.MustCompile(`Line (\d+):(\d+)\s*(.*)`).FindStringSubmatch(detail); m != nil {
		line, _ = strconv.Atoi(m[1])
		col, _ = strconv.Atoi(m[2])
		detail = strings.TrimSpace(m[3])
	}
	return fmt.Errorf("SyntaxError(line %d:col %d) %s '%s'", line, col, detail, sourceLine(src, line))
}

func scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("Error in script: InterruptedError(line %d) %v",
			scriptLine(interrupted.String()), interrupted.Value())
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		text := ex.String()
		first, _, _ := strings.Cut(text, "\n")
		name, detail, found := strings.Cut(first, ": ")
		if !found {
			name, detail = "Error", first
		}
		return fmt.Errorf("Error in script: %s(line %d) %s", name, scriptLine(text), detail)
	}
	return fmt.Errorf("Error in script: %T(line 0) %s", err, err)
}

// scriptLine extracts the first source position mentioned in an engine
// error, or 0 when the text carries none.
func scriptLine(text string) int {
	m := linePos.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func sourceLine(src string, line int) string {
	lines := strings.Split(src, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	return strings.TrimSpace(lines[line-1])
}

// installUtil binds the utility namespace available to scripts.
func installUtil(vm *goja.Runtime) error {
	util := map[string]any{
		"j2s": func(v any) (string, error) {
			b, err := json.Marshal(v)
			return string(b), err
		},
		"s2j": func(s string) (any, error) {
			var out any
			err := json.Unmarshal([]byte(s), &out)
			return out, err
		},
		"urlencode": url.QueryEscape,
		"seq": func(n int64) []int64 {
			out := make([]int64, 0, max(n, 0))
			for i := int64(0); i < n; i++ {
				out = append(out, i)
			}
			return out
		},
		"keys": func(m map[string]any) []string {
			out := make([]string, 0, len(m))
			for k := range m {
				out = append(out, k)
			}
			sort.Strings(out)
			return out
		},
	}
	return vm.Set("util", util)
}
