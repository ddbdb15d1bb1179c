package expr

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	event := map[string]interface{}{
		"statusCode": float64(503),
		"url":        "/api/Users ",
		"user":       map[string]interface{}{"name": "Ada", "tags": []interface{}{"a", "b"}},
		"count":      3,
		"empty":      "",
	}

	cases := []struct {
		src  string
		want interface{}
	}{
		{src: "event.statusCode >= 400", want: true},
		{src: "event.statusCode < 400", want: false},
		{src: "event.count * 2 + 1", want: float64(7)},
		{src: "1 + 2 * 3 - 4 / 2", want: float64(5)},
		{src: "(1 + 2) * 3", want: float64(9)},
		{src: "10 % 4", want: float64(2)},
		{src: "-event.count", want: float64(-3)},
		{src: "event.missing", want: nil},
		{src: "event.missing == null", want: true},
		{src: "event.missing >= 400", want: false},
		{src: "event.user.name == 'Ada'", want: true},
		{src: `event["user"]["tags"][1]`, want: "b"},
		{src: "event.user.tags.length", want: float64(2)},
		{src: "event.user.tags[5]", want: nil},
		{src: "'code ' + event.statusCode", want: "code 503"},
		{src: "event.count == 3.0", want: true},
		{src: "event.count === 3", want: true},
		{src: "event.url !== '/x'", want: true},
		{src: "!event.empty", want: true},
		{src: "event.empty || event.count > 2", want: true},
		{src: "event.missing && event.missing.deep", want: false},
		{src: "event.statusCode >= 500 ? 'server' : 'client'", want: "server"},
		{src: "'b' > 'a'", want: true},
		{src: "'b' > 1", want: false},
		{src: "lower(trim(event.url))", want: "/api/users"},
		{src: "upper(event.user.name)", want: "ADA"},
		{src: "len(event.user.tags)", want: float64(2)},
		{src: "number('42') + 1", want: float64(43)},
		{src: "string(1.5)", want: "1.5"},
		{src: "round(2.5) + floor(1.9) + ceil(0.1) + abs(-1)", want: float64(6)},
		{src: "contains(event.url, 'Users')", want: true},
		{src: "contains(event.user.tags, 'c')", want: false},
		{src: "startsWith(event.url, '/api')", want: true},
		{src: "endsWith(event.url, 'x')", want: false},
		{src: "has(event, 'url')", want: true},
		{src: "coalesce(event.missing, event.count)", want: 3},
		{src: "[1, 'two', null]", want: []interface{}{float64(1), "two", nil}},
	}

	for _, tc := range cases {
		p, err := Compile(tc.src, EventVar)
		require.NoError(t, err, tc.src)
		got, err := p.Run(Scope{EventVar: event})
		require.NoError(t, err, tc.src)
		assert.Equal(t, tc.want, got, tc.src)
	}
}

func TestObjectConstruction(t *testing.T) {
	event := map[string]interface{}{"statusCode": float64(404), "url": "/a", "timestamp": float64(1000), "extra": true}

	p, err := Compile("{ code: event.statusCode, url: event.url, timestamp: event.timestamp }", EventVar)
	require.NoError(t, err)
	got, err := p.Run(Scope{EventVar: event})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"code": float64(404), "url": "/a", "timestamp": float64(1000)}, got)

	p, err = Compile(`{ ...event, "extra": false, doubled: event.statusCode * 2, }`, EventVar)
	require.NoError(t, err)
	got, err = p.Run(Scope{EventVar: event})
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{
		"statusCode": float64(404), "url": "/a", "timestamp": float64(1000),
		"extra": false, "doubled": float64(808),
	}, got)
	assert.Len(t, event, 4, "spread must not mutate the input")
}

func TestAggregateFunctions(t *testing.T) {
	events := []interface{}{
		map[string]interface{}{"v": float64(10)},
		map[string]interface{}{"v": 20},
		map[string]interface{}{"v": "n/a"},
		map[string]interface{}{"w": float64(1)},
	}

	cases := []struct {
		src  string
		want interface{}
	}{
		{src: "sum(events, 'v')", want: float64(30)},
		{src: "avg(events, 'v')", want: float64(15)},
		{src: "min(events, 'v')", want: float64(10)},
		{src: "max(events, 'v')", want: float64(20)},
		{src: "count(events)", want: float64(4)},
		{src: "count(events, 'v')", want: float64(3)},
		{src: "first(events, 'v')", want: float64(10)},
		{src: "last(events, 'v')", want: nil},
		{src: "max(events, 'missing')", want: nil},
		{src: "sum([1, 2, 3])", want: float64(6)},
		{src: "events[0].v + events[1].v", want: float64(30)},
		{src: "{ total: sum(events, 'v'), n: len(events) }", want: map[string]interface{}{"total": float64(30), "n": float64(4)}},
	}

	for _, tc := range cases {
		p, err := Compile(tc.src, EventsVar)
		require.NoError(t, err, tc.src)
		got, err := p.Run(Scope{EventsVar: events})
		require.NoError(t, err, tc.src)
		assert.Equal(t, tc.want, got, tc.src)
	}
}

func TestNow(t *testing.T) {
	defer func(f func() time.Time) { nowFunc = f }(nowFunc)
	nowFunc = func() time.Time { return time.UnixMilli(1700000000000) }

	p := MustCompile("now() - 1000")
	got, err := p.Run(nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1699999999000), got)
}

func TestRuntimeErrors(t *testing.T) {
	event := map[string]interface{}{"n": float64(1), "s": "x"}
	cases := []string{
		"event.missing.deep",
		"event.s * 2",
		"event.n / 0",
		"event.n % 0",
		"-event.s",
		"{...event.s}",
		"abs('x')",
		"number('abc')",
		"lower()",
		"sum(event.s)",
	}
	for _, src := range cases {
		p, err := Compile(src, EventVar)
		require.NoError(t, err, src)
		_, err = p.Run(Scope{EventVar: event})
		require.Error(t, err, src)
		var evalErr *EvalError
		assert.True(t, errors.As(err, &evalErr), src)
	}
}

func TestSyntaxErrors(t *testing.T) {
	cases := []string{
		"",
		"event.",
		"event >=",
		"(1 + 2",
		"{ a 1 }",
		"[1, 2",
		"foo.bar",
		"bogus(1)",
		"1 2",
		"a ? b",
		"'open",
		"event = 1",
	}
	for _, src := range cases {
		_, err := Compile(src, EventVar)
		require.Error(t, err, src)
		var synErr *SyntaxError
		assert.True(t, errors.As(err, &synErr), src)
	}
}

func TestPredicateMapperReducer(t *testing.T) {
	pred, err := Predicate("event.statusCode >= 400")
	require.NoError(t, err)
	ok, err := pred(map[string]interface{}{"statusCode": 500})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = pred(map[string]interface{}{"statusCode": 200})
	require.NoError(t, err)
	assert.False(t, ok)

	mapper, err := Mapper("event.v * 10")
	require.NoError(t, err)
	v, err := mapper(map[string]interface{}{"v": 2})
	require.NoError(t, err)
	assert.Equal(t, float64(20), v)

	reducer, err := Reducer("sum(events, 'v')")
	require.NoError(t, err)
	v, err = reducer([]interface{}{map[string]interface{}{"v": 1}, map[string]interface{}{"v": 2}})
	require.NoError(t, err)
	assert.Equal(t, float64(3), v)

	_, err = Predicate("events.length")
	assert.Error(t, err)
}

func TestProgramString(t *testing.T) {
	p := MustCompile("event.a + 2 * event.b > 3 && !event.c", EventVar)
	assert.Equal(t, "((event.a + (2 * event.b)) > 3) && !event.c", trimParens(p.String()))
	assert.Equal(t, "event.a + 2 * event.b > 3 && !event.c", p.Source())
}

func trimParens(s string) string {
	if len(s) > 1 && s[0] == '(' && s[len(s)-1] == ')' {
		return s[1 : len(s)-1]
	}
	return s
}

func TestRegister(t *testing.T) {
	_, err := Compile("twice(2)")
	require.Error(t, err)

	Register("twice", func(args []interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, errors.New("twice takes one argument")
		}
		n, _ := args[0].(float64)
		return n * 2, nil
	})
	assert.Contains(t, Functions(), "twice")

	p, err := Compile("twice(event.n) + 1", EventVar)
	require.NoError(t, err)
	v, err := p.Run(Scope{EventVar: map[string]interface{}{"n": 4.0}})
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)

	_, err = MustCompile("twice()").Run(nil)
	var evalErr *EvalError
	require.ErrorAs(t, err, &evalErr)
	assert.Contains(t, err.Error(), "twice takes one argument")
}
