package signin

// NameEditor 名称列的编辑方式
type NameEditor string

const (
	NameFixed      NameEditor = "fixed"
	NameSelectable NameEditor = "selectable"
)

// LabelEditor 标签列的编辑方式
type LabelEditor string

const (
	LabelMarkup LabelEditor = "markup"
	LabelCSS    LabelEditor = "css"
)

// RuleOption 规则下拉项
type RuleOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Shape 一行中各列编辑器的形态
type Shape struct {
	Name             NameEditor   `json:"name"`
	VisibilityToggle bool         `json:"visibilityToggle"`
	Label            LabelEditor  `json:"label"`
	RuleOptions      []RuleOption `json:"ruleOptions,omitempty"`
	Placeholder      bool         `json:"placeholder"`
}

var providerRules = []RuleOption{
	{ID: "big", Name: "Big icon"},
	{ID: "small", Name: "Small icon"},
}

var shapes = map[Kind]Shape{
	KindCustom:     {Name: NameFixed, VisibilityToggle: true, Label: LabelMarkup},
	KindText:       {Name: NameSelectable, VisibilityToggle: true, Label: LabelMarkup},
	KindCredential: {Name: NameSelectable, VisibilityToggle: true, Label: LabelCSS, Placeholder: true},
	KindProviders:  {Name: NameSelectable, VisibilityToggle: true, Label: LabelCSS, RuleOptions: providerRules},
	KindID:         {Name: NameSelectable, Label: LabelCSS},
	KindStandard:   {Name: NameSelectable, VisibilityToggle: true, Label: LabelCSS},
	KindUnselected: {Name: NameSelectable, VisibilityToggle: true, Label: LabelCSS},
}

// ShapeOf 返回行对应的编辑器形态
func ShapeOf(r Row) Shape {
	kind := r.Kind
	if kind == "" {
		kind = KindOf(r.Name, r.IsCustom)
	}
	if s, ok := shapes[kind]; ok {
		return s
	}
	return shapes[KindUnselected]
}

func (s Shape) hasRule(id string) bool {
	if id == "" || id == RuleNone {
		return true
	}
	for _, opt := range s.RuleOptions {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// Column 表格列
type Column struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Width string `json:"width"`
}

// Columns 编辑器的列定义
func Columns() []Column {
	return []Column{
		{Key: "name", Title: "Name", Width: "200px"},
		{Key: "visible", Title: "Visible", Width: "120px"},
		{Key: "label", Title: "Label HTML", Width: "200px"},
		{Key: "placeholder", Title: "Placeholder", Width: "200px"},
		{Key: "rule", Title: "Rule", Width: "155px"},
		{Key: "action", Title: "Action", Width: "100px"},
	}
}

// RowView 编辑器渲染一行所需的全部信息
type RowView struct {
	Row         Row           `json:"row"`
	Shape       Shape         `json:"shape"`
	NameOptions []CatalogItem `json:"nameOptions,omitempty"`
	CanMoveUp   bool          `json:"canMoveUp"`
	CanMoveDown bool          `json:"canMoveDown"`
}

// View 生成整个表格的渲染数据
func View(t Table) []RowView {
	views := make([]RowView, 0, len(t))
	for i, row := range t {
		shape := ShapeOf(row)
		v := RowView{
			Row:         row,
			Shape:       shape,
			CanMoveUp:   i > 0,
			CanMoveDown: i < len(t)-1,
		}
		if shape.Name == NameSelectable {
			v.NameOptions = NameOptions(t, i)
		}
		views = append(views, v)
	}
	return views
}
