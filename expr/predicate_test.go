package expr

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xinjiayu/rxgo/v2"
)

type user struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func TestCompile(t *testing.T) {
	t.Run("空表达式恒为true", func(t *testing.T) {
		program, err := Compile("  ")
		require.NoError(t, err)
		ok, err := program.Eval(42)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("语法错误", func(t *testing.T) {
		_, err := Compile("v >")
		assert.ErrorContains(t, err, "compile")
	})

	t.Run("非bool结果", func(t *testing.T) {
		program, err := Compile("v + 1")
		require.NoError(t, err)
		_, err = program.Eval(1)
		assert.ErrorContains(t, err, "want bool")
	})
}

func TestFilter(t *testing.T) {
	ctx := context.Background()

	t.Run("整数", func(t *testing.T) {
		values, err := rxgo.Collect(ctx, rxgo.Pipe1(rxgo.Range(1, 10), Filter[int]("v % 2 == 0")))
		require.NoError(t, err)
		assert.Equal(t, []int{2, 4, 6, 8, 10}, values)
	})

	t.Run("结构体字段", func(t *testing.T) {
		users := rxgo.Of(user{"Leanne", 31}, user{"Ervin", 24}, user{"Clementine", 18})
		values, err := rxgo.Collect(ctx, rxgo.Pipe1(users, Filter[user]("v.age > 30")))
		require.NoError(t, err)
		assert.Equal(t, []user{{"Leanne", 31}}, values)
	})

	t.Run("编译失败时流以错误终止", func(t *testing.T) {
		_, err := rxgo.Collect(ctx, rxgo.Pipe1(rxgo.Of(1), Filter[int]("v >")))
		assert.ErrorContains(t, err, "compile")
	})

	t.Run("求值失败时流以错误终止", func(t *testing.T) {
		_, err := rxgo.Collect(ctx, rxgo.Pipe1(rxgo.Of("text"), Filter[string]("v.missing == 1")))
		assert.ErrorContains(t, err, "eval")
	})
}
