// CEL predicates for RxGo
// CEL表达式谓词：把字符串表达式编译为Filter等操作符可以使用的谓词
package expr

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/xinjiayu/rxgo/v2"
)

// ValueVariable 表达式中代表当前值的变量名
const ValueVariable = "v"

// Program 编译后的CEL表达式，可以被多个goroutine并发求值
type Program struct {
	source string
	prog   cel.Program
}

// Compile 编译expression。空表达式恒为true。
func Compile(expression string) (*Program, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return &Program{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable(ValueVariable, cel.DynType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expression)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("expr: compile %q: %w", expression, iss.Err())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("expr: program %q: %w", expression, err)
	}
	return &Program{source: expression, prog: prog}, nil
}

// String 原始表达式
func (p *Program) String() string {
	return p.source
}

// Eval 对value求值，结果不是bool时返回错误
func (p *Program) Eval(value any) (bool, error) {
	if p.prog == nil {
		return true, nil
	}

	out, _, err := p.prog.Eval(map[string]any{ValueVariable: toNative(value)})
	if err != nil {
		return false, fmt.Errorf("expr: eval %q: %w", p.source, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expr: %q returned %T, want bool", p.source, out.Value())
	}
	return b, nil
}

// Predicate 编译expression并返回谓词。
// 求值出错时谓词panic，Filter等操作符会把它转为流错误。
func Predicate[T any](expression string) (rxgo.Predicate[T], error) {
	program, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return func(value T) bool {
		ok, err := program.Eval(value)
		if err != nil {
			panic(err)
		}
		return ok
	}, nil
}

// Filter 只放行使expression为true的值。表达式无法编译时返回的流直接以编译错误终止。
func Filter[T any](expression string) rxgo.OperatorFunc[T, T] {
	predicate, err := Predicate[T](expression)
	if err != nil {
		return func(rxgo.Observable[T]) rxgo.Observable[T] {
			return rxgo.Throw[T](err)
		}
	}
	return rxgo.Filter(predicate)
}

// toNative 结构体等CEL无法直接识别的值经过JSON转为map
func toNative(value any) any {
	if value == nil {
		return nil
	}

	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return rv.Interface()
	}

	data, err := json.Marshal(value)
	if err != nil {
		return value
	}
	var native any
	if err := json.Unmarshal(data, &native); err != nil {
		return value
	}
	return native
}
