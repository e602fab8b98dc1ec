package signin

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	ErrUnknownField     = errors.New("unknown field")
	ErrFieldNotEditable = errors.New("field is not editable for this row")
	ErrDuplicateName    = errors.New("name is already used by another row")
	ErrInvalidValue     = errors.New("invalid value")
	ErrUnknownIntent    = errors.New("unknown intent")
)

// Field 可编辑的列
type Field string

const (
	FieldName        Field = "name"
	FieldVisible     Field = "visible"
	FieldRequired    Field = "required"
	FieldRule        Field = "rule"
	FieldLabel       Field = "label"
	FieldPlaceholder Field = "placeholder"
)

// ParseField 解析列名
func ParseField(s string) (Field, error) {
	switch f := Field(s); f {
	case FieldName, FieldVisible, FieldRequired, FieldRule, FieldLabel, FieldPlaceholder:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Intent 对表格的一次编辑
type Intent interface {
	apply(t Table) (Table, error)
}

// AddRow 末尾追加一行，名称取第一个未使用的目录项
type AddRow struct{}

// AddCustomRow 末尾追加一个自定义文本项，不带 required 和 rule
type AddCustomRow struct {
	At time.Time
}

type DeleteRow struct {
	Index int
}

type MoveUp struct {
	Index int
}

type MoveDown struct {
	Index int
}

type UpdateField struct {
	Index int
	Field Field
	Value string
}

// Reduce 对表格应用一次编辑，返回新表格；下标越界时原样返回副本
func Reduce(t Table, in Intent) (Table, error) {
	if in == nil {
		return t.clone(), ErrUnknownIntent
	}
	return in.apply(t)
}

func (AddRow) apply(t Table) (Table, error) {
	name := NextRowName(t)
	row := Row{
		Key:      newKey(),
		Name:     name,
		Kind:     KindOf(name, false),
		Visible:  true,
		Required: true,
		Rule:     RuleNone,
	}
	return append(t.clone(), row), nil
}

func (in AddCustomRow) apply(t Table) (Table, error) {
	at := in.At
	if at.IsZero() {
		at = time.Now()
	}
	row := Row{
		Key:      newKey(),
		Name:     uniqueName(t, CustomPrefix+strconv.FormatInt(at.UnixMilli(), 10)),
		Kind:     KindCustom,
		Visible:  true,
		IsCustom: true,
	}
	return append(t.clone(), row), nil
}

func (in DeleteRow) apply(t Table) (Table, error) {
	if in.Index < 0 || in.Index >= len(t) {
		return t.clone(), nil
	}
	out := make(Table, 0, len(t)-1)
	out = append(out, t[:in.Index]...)
	return append(out, t[in.Index+1:]...), nil
}

func (in MoveUp) apply(t Table) (Table, error) {
	return swapRows(t, in.Index-1, in.Index), nil
}

func (in MoveDown) apply(t Table) (Table, error) {
	return swapRows(t, in.Index, in.Index+1), nil
}

func swapRows(t Table, i, j int) Table {
	out := t.clone()
	if i < 0 || j >= len(out) {
		return out
	}
	out[i], out[j] = out[j], out[i]
	return out
}

func (in UpdateField) apply(t Table) (Table, error) {
	out := t.clone()
	if in.Index < 0 || in.Index >= len(out) {
		return out, nil
	}
	row := &out[in.Index]
	shape := ShapeOf(*row)

	switch in.Field {
	case FieldName:
		if shape.Name != NameSelectable {
			return t.clone(), fmt.Errorf("%w: name", ErrFieldNotEditable)
		}
		if in.Value == row.Name {
			return out, nil
		}
		if !inCatalog(in.Value) {
			return t.clone(), fmt.Errorf("%w: %q is not a signin item", ErrInvalidValue, in.Value)
		}
		if out.hasName(in.Value, in.Index) {
			return t.clone(), fmt.Errorf("%w: %q", ErrDuplicateName, in.Value)
		}
		row.Name = in.Value
		row.Kind = KindOf(row.Name, row.IsCustom)
		if !ShapeOf(*row).hasRule(row.Rule) {
			row.Rule = RuleNone
		}

	case FieldVisible:
		if !shape.VisibilityToggle {
			return t.clone(), fmt.Errorf("%w: visible", ErrFieldNotEditable)
		}
		v, err := strconv.ParseBool(in.Value)
		if err != nil {
			return t.clone(), fmt.Errorf("%w: visible=%q", ErrInvalidValue, in.Value)
		}
		row.Visible = v
		row.Required = v

	case FieldRequired:
		v, err := strconv.ParseBool(in.Value)
		if err != nil {
			return t.clone(), fmt.Errorf("%w: required=%q", ErrInvalidValue, in.Value)
		}
		if v && !row.Visible {
			return t.clone(), fmt.Errorf("%w: hidden row cannot be required", ErrInvalidValue)
		}
		row.Required = v

	case FieldRule:
		if len(shape.RuleOptions) == 0 {
			return t.clone(), fmt.Errorf("%w: rule", ErrFieldNotEditable)
		}
		if !shape.hasRule(in.Value) {
			return t.clone(), fmt.Errorf("%w: rule=%q", ErrInvalidValue, in.Value)
		}
		row.Rule = in.Value

	case FieldLabel:
		row.Label = in.Value

	case FieldPlaceholder:
		if !shape.Placeholder {
			return t.clone(), fmt.Errorf("%w: placeholder", ErrFieldNotEditable)
		}
		row.Placeholder = in.Value

	default:
		return t.clone(), fmt.Errorf("%w: %q", ErrUnknownField, in.Field)
	}
	return out, nil
}

// ParseIntent 把接口请求转换为编辑操作
func ParseIntent(op string, index int, field, value string, now time.Time) (Intent, error) {
	switch op {
	case "add":
		return AddRow{}, nil
	case "addCustom":
		return AddCustomRow{At: now}, nil
	case "delete":
		return DeleteRow{Index: index}, nil
	case "up":
		return MoveUp{Index: index}, nil
	case "down":
		return MoveDown{Index: index}, nil
	case "update":
		f, err := ParseField(field)
		if err != nil {
			return nil, err
		}
		return UpdateField{Index: index, Field: f, Value: value}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownIntent, op)
}

// Editor 分发编辑操作并通知宿主，不持有表格副本
type Editor struct {
	OnUpdateTable func(Table)
}

// Dispatch 应用编辑；成功时通过 OnUpdateTable 发布新表格，失败时返回原表格
func (e *Editor) Dispatch(t Table, in Intent) (Table, error) {
	next, err := Reduce(t, in)
	if err != nil {
		return t, err
	}
	if e.OnUpdateTable != nil {
		e.OnUpdateTable(next)
	}
	return next, nil
}
