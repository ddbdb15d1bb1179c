// Package dsl compiles the line-oriented pipeline language:
//
//	# comment
//	source file("./input.json")
//	filter(event.statusCode >= 400)
//	transform({ code: event.statusCode, url: event.url })
//	aggregate(count=100, window=5000) { errors: count(events), total: sum(events, "code") }
//	sink kafka({ "brokers": ["localhost:9092"], "topic": "errors" })
//	bufferSize 1000
//
// Every line is checked before a pipeline is returned; one bad line fails
// the whole document.
package dsl

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"streamsynth/internal/expr"
	"streamsynth/internal/model"
	"streamsynth/internal/pipeline"
)

var (
	commandRe   = regexp.MustCompile(`^(\w+)\s+(.+)$`)
	connectorRe = regexp.MustCompile(`^(\w+)\(\s*["']([^"']+)["']\s*\)$`)
	kafkaRe     = regexp.MustCompile(`^kafka\(\s*(\{.*\})\s*\)$`)
	bufferRe    = regexp.MustCompile(`^\d+$`)
	optionRe    = regexp.MustCompile(`^(\w+)\s*=\s*["']?([^"'\s]+)["']?$`)
)

// Compile turns DSL text into a pipeline ready to Start.
func Compile(text string) (*pipeline.Pipeline, error) {
	def, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return pipeline.FromDefinition(def), nil
}

// Parse turns DSL text into a pipeline definition. Errors are
// *model.DslSyntaxError values.
func Parse(text string) (pipeline.Definition, error) {
	def := pipeline.Definition{
		BufferCapacity: model.DefaultBufferSize,
		Text:           strings.TrimSpace(text),
	}

	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		c := &lineCompiler{def: &def, no: i + 1, text: line}
		if err := c.compile(); err != nil {
			return pipeline.Definition{}, err
		}
	}
	return def, nil
}

type lineCompiler struct {
	def  *pipeline.Definition
	no   int
	text string
}

func (c *lineCompiler) errorf(format string, args ...interface{}) error {
	return &model.DslSyntaxError{Line: c.no, Text: c.text, Msg: fmt.Sprintf(format, args...)}
}

func (c *lineCompiler) compile() error {
	switch {
	case strings.HasPrefix(c.text, "filter("):
		return c.filter(strings.TrimPrefix(c.text, "filter"))
	case strings.HasPrefix(c.text, "transform("):
		return c.transform(strings.TrimPrefix(c.text, "transform"))
	case strings.HasPrefix(c.text, "aggregate("):
		return c.aggregate(strings.TrimPrefix(c.text, "aggregate"))
	}

	m := commandRe.FindStringSubmatch(c.text)
	if m == nil {
		return c.errorf("invalid line")
	}
	command, args := m[1], strings.TrimSpace(m[2])
	switch command {
	case "source":
		d, err := c.descriptor("source", args)
		if err != nil {
			return err
		}
		c.def.Source = d
	case "sink":
		d, err := c.descriptor("sink", args)
		if err != nil {
			return err
		}
		c.def.Sink = d
	case "bufferSize":
		if !bufferRe.MatchString(args) {
			return c.errorf("invalid buffer size %q", args)
		}
		n, err := strconv.Atoi(args)
		if err != nil {
			return c.errorf("invalid buffer size %q", args)
		}
		c.def.BufferCapacity = n
	default:
		return c.errorf("unknown command %q", command)
	}
	return nil
}

// descriptor parses `type("arg")` or `kafka({...})`.
func (c *lineCompiler) descriptor(role, args string) (model.Descriptor, error) {
	if strings.HasPrefix(args, "kafka(") {
		m := kafkaRe.FindStringSubmatch(args)
		if m == nil {
			return model.Descriptor{}, c.errorf("invalid kafka %s specification", role)
		}
		// YAML flow mappings accept JSON as well as unquoted keys.
		var cfg map[string]interface{}
		if err := yaml.Unmarshal([]byte(m[1]), &cfg); err != nil {
			return model.Descriptor{}, c.errorf("invalid kafka configuration: %v", err)
		}
		if cfg == nil {
			cfg = map[string]interface{}{}
		}
		return model.Descriptor{Type: "kafka", Config: cfg}, nil
	}

	m := connectorRe.FindStringSubmatch(args)
	if m == nil {
		return model.Descriptor{}, c.errorf("invalid %s specification", role)
	}
	typ, arg := m[1], m[2]
	cfg := map[string]interface{}{"path": arg}
	if typ == "http" {
		cfg["url"] = arg
	}
	return model.Descriptor{Type: typ, Config: cfg}, nil
}

// parenBody returns what sits between the opening parenthesis at s[0] and
// its matching close, and the rest of s after it. Parentheses inside string
// literals are ignored.
func (c *lineCompiler) parenBody(s string) (string, string, error) {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch ch {
		case '"', '\'':
			quote = ch
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[1:i], strings.TrimSpace(s[i+1:]), nil
			}
		}
	}
	return "", "", c.errorf("unbalanced parentheses")
}

func (c *lineCompiler) filter(s string) error {
	body, rest, err := c.parenBody(s)
	if err != nil {
		return err
	}
	if rest != "" {
		return c.errorf("unexpected %q after filter expression", rest)
	}
	body = strings.TrimSpace(body)
	pred, err := expr.Predicate(body)
	if err != nil {
		return c.errorf("filter: %v", err)
	}
	stage := pipeline.NewFilter(pred)
	stage.Expr = body
	c.def.Stages = append(c.def.Stages, stage)
	return nil
}

func (c *lineCompiler) transform(s string) error {
	body, rest, err := c.parenBody(s)
	if err != nil {
		return err
	}
	if rest != "" {
		return c.errorf("unexpected %q after transform expression", rest)
	}
	body = strings.TrimSpace(body)
	mapper, err := expr.Mapper(body)
	if err != nil {
		return c.errorf("transform: %v", err)
	}
	stage := pipeline.NewTransform(mapper)
	stage.Expr = body
	c.def.Stages = append(c.def.Stages, stage)
	return nil
}

func (c *lineCompiler) aggregate(s string) error {
	opts, body, err := c.parenBody(s)
	if err != nil {
		return err
	}
	window, err := c.windowOptions(opts)
	if err != nil {
		return err
	}
	if body == "" {
		return c.errorf("aggregate requires a reducer expression")
	}
	reducer, err := expr.Reducer(body)
	if err != nil {
		return c.errorf("aggregate: %v", err)
	}
	stage := pipeline.NewAggregate(window, reducer)
	stage.Expr = body
	c.def.Stages = append(c.def.Stages, stage)
	return nil
}

func (c *lineCompiler) windowOptions(s string) (model.WindowSpec, error) {
	var w model.WindowSpec
	if strings.TrimSpace(s) == "" {
		return w, nil
	}
	for _, part := range strings.Split(s, ",") {
		m := optionRe.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			return w, c.errorf("invalid aggregate option %q", strings.TrimSpace(part))
		}
		key, val := m[1], m[2]
		switch key {
		case "count", "window":
			n, err := strconv.Atoi(val)
			if err != nil || n <= 0 {
				return w, c.errorf("aggregate %s must be a positive integer, got %q", key, val)
			}
			if key == "count" {
				w.Count = n
			} else {
				w.TimeWindow = time.Duration(n) * time.Millisecond
			}
		case "field":
			w.TimestampField = val
		default:
			return w, c.errorf("unknown aggregate option %q", key)
		}
	}
	return w, nil
}
