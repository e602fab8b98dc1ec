package signin

// CatalogItem 可选登录项
type CatalogItem struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// 顺序即新增行时的选择顺序
var catalog = []CatalogItem{
	{Name: "Signin methods", DisplayName: "Signin methods"},
	{Name: "Logo", DisplayName: "Logo"},
	{Name: "Back button", DisplayName: "Back button"},
	{Name: "Languages", DisplayName: "Languages"},
	{Name: NameUsername, DisplayName: "Username"},
	{Name: NamePassword, DisplayName: "Password"},
	{Name: NameProviders, DisplayName: "Providers"},
	{Name: "Agreement", DisplayName: "Agreement"},
	{Name: "Forgot password?", DisplayName: "Forgot password?"},
	{Name: "Login button", DisplayName: "Login button"},
	{Name: "Signup link", DisplayName: "Signup link"},
}

// Catalog 返回目录副本
func Catalog() []CatalogItem {
	out := make([]CatalogItem, len(catalog))
	copy(out, catalog)
	return out
}

func inCatalog(name string) bool {
	for _, item := range catalog {
		if item.Name == name {
			return true
		}
	}
	return false
}

// DisplayName 目录项的展示名称，不在目录中时返回空字符串
func DisplayName(name string) string {
	for _, item := range catalog {
		if item.Name == name {
			return item.DisplayName
		}
	}
	return ""
}

// NameOptions 第 i 行名称下拉框可选的目录项：排除其他行已使用的名称
func NameOptions(t Table, i int) []CatalogItem {
	options := make([]CatalogItem, 0, len(catalog))
	for _, item := range catalog {
		if !t.hasName(item.Name, i) {
			options = append(options, item)
		}
	}
	return options
}

// NextRowName 第一个未被使用的目录名称；目录用尽时返回占位名称，
// 占位名称重复时在末尾补空格保持唯一
func NextRowName(t Table) string {
	for _, item := range catalog {
		if !t.hasName(item.Name, -1) {
			return item.Name
		}
	}
	return uniqueName(t, placeholderName)
}

var placeholderName = PlaceholderName

// SetPlaceholderName 覆盖占位名称，空字符串恢复默认值
func SetPlaceholderName(name string) {
	if name == "" {
		name = PlaceholderName
	}
	placeholderName = name
}

func uniqueName(t Table, name string) string {
	res := name
	for t.hasName(res, -1) {
		res += " "
	}
	return res
}
