package engine

import (
	"errors"
	"fmt"
)

// Step 发布流程中的步骤
type Step string

const (
	StepValidate    Step = "validate"
	StepFetchVideo  Step = "fetch_video"
	StepUploadTab   Step = "upload_tab"
	StepInjectVideo Step = "inject_video"
	StepFillField   Step = "fill_field"
	StepUploadWait  Step = "upload_wait"
	StepCover       Step = "cover"
	StepSubmit      Step = "submit"
)

// ErrorKind 错误类别
type ErrorKind int

const (
	KindMissingInput ErrorKind = iota + 1
	KindTransfer
	KindElementNotFound
	KindUnexpected
)

func (k ErrorKind) String() string {
	switch k {
	case KindMissingInput:
		return "missing_input"
	case KindTransfer:
		return "transfer"
	case KindElementNotFound:
		return "element_not_found"
	default:
		return "unexpected"
	}
}

var (
	ErrMissingInput    = errors.New("缺少必要输入")
	ErrTransfer        = errors.New("资源下载失败")
	ErrElementNotFound = errors.New("未找到页面元素")
	ErrUnexpected      = errors.New("意外错误")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindMissingInput:
		return ErrMissingInput
	case KindTransfer:
		return ErrTransfer
	case KindElementNotFound:
		return ErrElementNotFound
	default:
		return ErrUnexpected
	}
}

// StepError 步骤失败的详细信息，可用 errors.Is 匹配 Err* 哨兵错误
type StepError struct {
	Step Step
	Kind ErrorKind
	Err  error
}

func (e *StepError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Kind.sentinel(), e.Err)
}

func (e *StepError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind.sentinel()}
	}
	return []error{e.Kind.sentinel(), e.Err}
}

// Severity 步骤结果等级
type Severity int

const (
	Success Severity = iota
	Recoverable
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	default:
		return "success"
	}
}

// Outcome 单个步骤的结果，由 sequencer 决定继续还是终止
type Outcome struct {
	Step     Step
	Detail   string
	Severity Severity
	Err      *StepError
}

func succeeded(step Step, detail string) Outcome {
	return Outcome{Step: step, Detail: detail, Severity: Success}
}

func recoverable(step Step, kind ErrorKind, err error) Outcome {
	return Outcome{Step: step, Severity: Recoverable, Err: &StepError{Step: step, Kind: kind, Err: err}}
}

func fatal(step Step, kind ErrorKind, err error) Outcome {
	return Outcome{Step: step, Severity: Fatal, Err: &StepError{Step: step, Kind: kind, Err: err}}
}

func notFound(step Step, what string) Outcome {
	return recoverable(step, KindElementNotFound, errors.New(what))
}
