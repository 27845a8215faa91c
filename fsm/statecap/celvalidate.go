package statecap

import (
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/hrygo/botfsm/fsm"
)

// CELValidator validates a message's text against a compiled CEL boolean
// expression, e.g. `int(text) >= 1 && int(text) <= 5`. The expression sees
// the message text bound to the variable "text". Compilation happens once,
// on first use, and is memoized for the validator's lifetime — the same
// lazy-compile-once shape SwitchByMessage uses for its option table.
type CELValidator struct {
	once    sync.Once
	expr    string
	program cel.Program
	compErr error
}

// NewCELValidator builds a validator from a CEL boolean expression.
func NewCELValidator(expr string) *CELValidator {
	return &CELValidator{expr: expr}
}

func (v *CELValidator) compile() (cel.Program, error) {
	v.once.Do(func() {
		env, err := cel.NewEnv(cel.Variable("text", cel.StringType))
		if err != nil {
			v.compErr = err
			return
		}
		ast, iss := env.Compile(v.expr)
		if iss != nil && iss.Err() != nil {
			v.compErr = iss.Err()
			return
		}
		program, err := env.Program(ast)
		if err != nil {
			v.compErr = err
			return
		}
		v.program = program
	})
	return v.program, v.compErr
}

// Validate implements Validator[string]: on a true CEL result it returns
// the message text unchanged, ok=true.
func (v *CELValidator) Validate(msg fsm.MessageAction) (string, bool) {
	program, err := v.compile()
	if err != nil || program == nil {
		return "", false
	}
	out, _, err := program.Eval(map[string]any{"text": msg.Text})
	if err != nil {
		return "", false
	}
	result, ok := out.Value().(bool)
	if !ok || !result {
		return "", false
	}
	return msg.Text, true
}
