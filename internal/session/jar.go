package session

import (
	"net/http"
	"strings"
)

// Cookie is a single name/value pair, attributes like Path or Expires are not
// tracked since the jar is only ever replayed to the same vendor.
type Cookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Jar is an ordered mapping of cookie name to value. Setting an existing
// name replaces the value in place and keeps its position.
type Jar struct {
	order  []string
	values map[string]string
}

func NewJar(cookies ...Cookie) *Jar {
	jar := &Jar{values: map[string]string{}}
	for _, c := range cookies {
		jar.Set(c.Name, c.Value)
	}
	return jar
}

// ParseHeader reads a `Cookie` header value ("a=1; b=2") into a jar.
// Segments without a name are skipped.
func ParseHeader(header string) *Jar {
	jar := NewJar()
	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		jar.Set(name, strings.TrimSpace(value))
	}
	return jar
}

func (j *Jar) Set(name, value string) {
	if j.values == nil {
		j.values = map[string]string{}
	}
	if _, ok := j.values[name]; !ok {
		j.order = append(j.order, name)
	}
	j.values[name] = value
}

func (j *Jar) Get(name string) (string, bool) {
	value, ok := j.values[name]
	return value, ok
}

func (j *Jar) Delete(name string) {
	if _, ok := j.values[name]; !ok {
		return
	}
	delete(j.values, name)
	for i, n := range j.order {
		if n == name {
			j.order = append(j.order[:i], j.order[i+1:]...)
			break
		}
	}
}

// DeleteFunc removes every cookie whose name matches.
func (j *Jar) DeleteFunc(match func(name string) bool) {
	kept := j.order[:0]
	for _, n := range j.order {
		if match(n) {
			delete(j.values, n)
			continue
		}
		kept = append(kept, n)
	}
	j.order = kept
}

func (j *Jar) Len() int {
	return len(j.order)
}

func (j *Jar) Cookies() []Cookie {
	out := make([]Cookie, len(j.order))
	for i, n := range j.order {
		out[i] = Cookie{Name: n, Value: j.values[n]}
	}
	return out
}

// Header renders the jar in `Cookie` header format.
func (j *Jar) Header() string {
	parts := make([]string, len(j.order))
	for i, n := range j.order {
		parts[i] = n + "=" + j.values[n]
	}
	return strings.Join(parts, "; ")
}

// Apply merges `Set-Cookie` values from a response, cookies the server asks
// to expire are removed.
func (j *Jar) Apply(cookies []*http.Cookie) {
	for _, c := range cookies {
		if c.MaxAge < 0 {
			j.Delete(c.Name)
			continue
		}
		j.Set(c.Name, c.Value)
	}
}
