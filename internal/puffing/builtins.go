package puffing

import (
	"strconv"
	"strings"
)

func builtins() []*Builtin {
	return []*Builtin{
		{Name: "print", Arity: -1, Fn: builtinPrint},
		{Name: "input", Arity: -1, Fn: builtinInput},
		{Name: "len", Arity: 1, Fn: builtinLen},
		{Name: "str", Arity: 1, Fn: builtinStr},
		{Name: "num", Arity: 1, Fn: builtinNum},
		{Name: "type", Arity: 1, Fn: builtinType},
		{Name: "push", Arity: 2, Fn: builtinPush},
	}
}

// print(a, b, ...) writes its arguments separated by spaces, then a newline.
func builtinPrint(in *Interpreter, pos Position, args []Value) (Value, error) {
	line, err := in.format(pos, " ", args...)
	if err != nil {
		return nil, err
	}
	return nil, in.write(line + "\n")
}

// input([prompt]) returns the next supplied input value. The prompt, if any,
// is printed without a trailing newline.
func builtinInput(in *Interpreter, pos Position, args []Value) (Value, error) {
	if len(args) > 1 {
		return nil, in.fail(TypeError, pos, "input() takes at most 1 argument(s), got %d", len(args))
	}
	if len(args) == 1 {
		prompt, err := in.format(pos, "", args[0])
		if err != nil {
			return nil, err
		}
		if err := in.write(prompt); err != nil {
			return nil, err
		}
	}
	if in.nextIn >= len(in.inputs) {
		return nil, in.fail(InputError, pos, "no more input values (%d provided)", len(in.inputs))
	}
	v := in.inputs[in.nextIn]
	in.nextIn++
	return v, nil
}

func builtinLen(in *Interpreter, pos Position, args []Value) (Value, error) {
	switch x := args[0].(type) {
	case string:
		return float64(len([]rune(x))), nil
	case *List:
		return float64(len(x.Elems)), nil
	}
	return nil, in.fail(TypeError, pos, "object of type '%s' has no len()", typeName(args[0]))
}

func builtinStr(in *Interpreter, pos Position, args []Value) (Value, error) {
	return in.format(pos, "", args[0])
}

func builtinNum(in *Interpreter, pos Position, args []Value) (Value, error) {
	switch x := args[0].(type) {
	case float64:
		return x, nil
	case bool:
		if x {
			return 1.0, nil
		}
		return 0.0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil, in.fail(TypeError, pos, "cannot convert %q to number", x)
		}
		return f, nil
	}
	return nil, in.fail(TypeError, pos, "cannot convert '%s' to number", typeName(args[0]))
}

func builtinType(_ *Interpreter, _ Position, args []Value) (Value, error) {
	return typeName(args[0]), nil
}

// push(list, value) appends value in place and returns the list.
func builtinPush(in *Interpreter, pos Position, args []Value) (Value, error) {
	list, ok := args[0].(*List)
	if !ok {
		return nil, in.fail(TypeError, pos, "push() expects a list, got '%s'", typeName(args[0]))
	}
	if len(list.Elems) >= MaxListLength {
		return nil, in.fail(RuntimeError, pos, "list too long (limit %d elements)", MaxListLength)
	}
	list.Elems = append(list.Elems, args[1])
	return list, nil
}
