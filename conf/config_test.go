package conf

import (
	"reflect"
	"testing"
)

// TestValidate 测试配置验证
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"默认配置缺少数据库", func(c *Config) {}, true},
		{"本地模式", func(c *Config) { c.Database.Host = "127.0.0.1" }, false},
		{"远程模式", func(c *Config) { c.Casdoor.Endpoint = "https://door.example.com" }, false},
		{"远程地址缺少协议", func(c *Config) { c.Casdoor.Endpoint = "door.example.com" }, true},
		{"缺少 origin", func(c *Config) {
			c.Database.Host = "127.0.0.1"
			c.Checkout.Origin = ""
		}, true},
		{"origin 协议非法", func(c *Config) {
			c.Database.Host = "127.0.0.1"
			c.Checkout.Origin = "javascript:alert(1)"
		}, true},
		{"静态资源地址非法", func(c *Config) {
			c.Database.Host = "127.0.0.1"
			c.Checkout.StaticBaseURL = "ftp://cdn.example.com"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := Validate(c)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestLoadFromEnv 测试环境变量覆盖
func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CASDOOR_ENDPOINT", "https://door.example.com")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("ADMIN_API_KEYS", " a , ,b ")

	c := Default()
	loadFromEnv(c)

	if !c.IsRemote() {
		t.Error("Expected remote mode after CASDOOR_ENDPOINT is set")
	}
	if c.Redis.Port != 6380 {
		t.Errorf("Expected redis port 6380, got %d", c.Redis.Port)
	}
	if c.Redis.DB != 0 {
		t.Errorf("Expected invalid REDIS_DB to be ignored, got %d", c.Redis.DB)
	}
	if !reflect.DeepEqual(c.Auth.AdminAPIKeys, []string{"a", "b"}) {
		t.Errorf("Unexpected admin keys: %v", c.Auth.AdminAPIKeys)
	}
}
