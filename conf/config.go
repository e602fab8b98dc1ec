package conf

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"console-checkout/biz"

	"gopkg.in/yaml.v3"
)

var (
	config     *Config
	configOnce sync.Once
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Host string `yaml:"host"`
	} `yaml:"server"`

	// Casdoor 远程后端（配置 endpoint 后结算流程改为调用远程接口）
	Casdoor struct {
		Endpoint     string `yaml:"endpoint"`
		ClientID     string `yaml:"client_id"`
		ClientSecret string `yaml:"client_secret"`
		Timeout      int    `yaml:"timeout"` // 秒
	} `yaml:"casdoor"`

	Checkout struct {
		Origin          string `yaml:"origin"`           // 用于拼接 successUrl / returnUrl
		QRCodeRoute     string `yaml:"qrcode_route"`     // 微信支付二维码页面路由前缀
		StaticBaseURL   string `yaml:"static_base_url"`  // 支付渠道 logo 所在的静态资源地址
		PlaceholderName string `yaml:"placeholder_name"` // 登录项表格的占位名称
	} `yaml:"checkout"`

	Stripe struct {
		SecretKey string `yaml:"secret_key"`
	} `yaml:"stripe"`

	WechatPay struct {
		AppID                      string `yaml:"app_id"`
		MchID                      string `yaml:"mch_id"`
		MchCertificateSerialNumber string `yaml:"mch_certificate_serial_number"`
		MchPrivateKeyPath          string `yaml:"mch_private_key_path"`
		MchAPIv3Key                string `yaml:"mch_api_v3_key"`
		NotifyURL                  string `yaml:"notify_url"`
	} `yaml:"wechat_pay"`

	Log struct {
		Level       string `yaml:"level"`       // debug, info, warn, error
		Environment string `yaml:"environment"` // development, production
		Output      string `yaml:"output"`      // console, json (生产环境推荐 json)
	} `yaml:"log"`

	Database struct {
		Host            string `yaml:"host"`
		Port            int    `yaml:"port"`
		User            string `yaml:"user"`
		Password        string `yaml:"password"`
		Database        string `yaml:"database"`
		MaxOpenConns    int    `yaml:"max_open_conns"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		ConnMaxLifetime int    `yaml:"conn_max_lifetime"`
	} `yaml:"database"`

	Redis struct {
		Address      string `yaml:"address"`
		Port         int    `yaml:"port"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		DialTimeout  int    `yaml:"dial_timeout"`  // 秒
		ReadTimeout  int    `yaml:"read_timeout"`  // 秒
		WriteTimeout int    `yaml:"write_timeout"` // 秒
		PoolSize     int    `yaml:"pool_size"`
		MinIdleConns int    `yaml:"min_idle_conns"`
	} `yaml:"redis"`

	Auth struct {
		APIKeys      []string `yaml:"api_keys"`
		AdminAPIKeys []string `yaml:"admin_api_keys"`
	} `yaml:"auth"`
}

// Init 初始化配置
func Init() error {
	var err error
	configOnce.Do(func() {
		config = &Config{}
		defaultConfig(config)

		// 读取配置文件，不存在时使用默认配置
		data, readErr := os.ReadFile("config.yaml")
		if readErr == nil {
			if err = yaml.Unmarshal(data, config); err != nil {
				return
			}
		}

		// 从环境变量覆盖配置
		loadFromEnv(config)

		err = Validate(config)
	})
	return err
}

func defaultConfig(c *Config) {
	c.Server.Port = "8080"
	c.Server.Host = "0.0.0.0"
	c.Log.Level = "info"
	c.Log.Environment = "development"
	c.Log.Output = "console"

	c.Casdoor.Timeout = 10

	c.Checkout.Origin = "http://localhost:8000"
	c.Checkout.QRCodeRoute = "/qrcode"
	c.Checkout.StaticBaseURL = "https://cdn.casbin.org"
	c.Checkout.PlaceholderName = "Please select a signin item"

	c.Database.Port = 3306
	c.Database.MaxOpenConns = 20
	c.Database.MaxIdleConns = 5
	c.Database.ConnMaxLifetime = 300

	// Redis 默认配置
	c.Redis.Address = ""
	c.Redis.Port = 6379
	c.Redis.DB = 0
	c.Redis.DialTimeout = 5
	c.Redis.ReadTimeout = 3
	c.Redis.WriteTimeout = 3
	c.Redis.PoolSize = 10
	c.Redis.MinIdleConns = 5
}

// Default 返回只包含默认值的配置（测试和工具使用）
func Default() *Config {
	c := &Config{}
	defaultConfig(c)
	return c
}

func loadFromEnv(c *Config) {
	if v := os.Getenv("STRIPE_SECRET_KEY"); v != "" {
		c.Stripe.SecretKey = v
	}
	if v := os.Getenv("WECHAT_PAY_API_V3_KEY"); v != "" {
		c.WechatPay.MchAPIv3Key = v
	}
	if v := os.Getenv("CASDOOR_ENDPOINT"); v != "" {
		c.Casdoor.Endpoint = v
	}
	if v := os.Getenv("CASDOOR_CLIENT_ID"); v != "" {
		c.Casdoor.ClientID = v
	}
	if v := os.Getenv("CASDOOR_CLIENT_SECRET"); v != "" {
		c.Casdoor.ClientSecret = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("REDIS_ADDRESS"); v != "" {
		c.Redis.Address = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = port
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_ENVIRONMENT"); v != "" {
		c.Log.Environment = v
	}
	if v := os.Getenv("LOG_OUTPUT"); v != "" {
		c.Log.Output = v
	}
	if v := os.Getenv("API_KEYS"); v != "" {
		c.Auth.APIKeys = splitList(v)
	}
	if v := os.Getenv("ADMIN_API_KEYS"); v != "" {
		c.Auth.AdminAPIKeys = splitList(v)
	}
}

// splitList 解析逗号分隔的列表
func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Validate 验证必要的配置
func Validate(c *Config) error {
	// 未配置远程后端时，本地商品库依赖数据库
	if c.Casdoor.Endpoint == "" && c.Database.Host == "" {
		return fmt.Errorf("database host is required when casdoor endpoint is not configured")
	}
	if err := biz.ValidateURL(c.Casdoor.Endpoint); err != nil {
		return fmt.Errorf("invalid casdoor endpoint: %w", err)
	}
	if c.Checkout.Origin == "" {
		return fmt.Errorf("checkout origin is required")
	}
	if err := biz.ValidateURL(c.Checkout.Origin); err != nil {
		return fmt.Errorf("invalid checkout origin: %w", err)
	}
	if err := biz.ValidateURL(c.Checkout.StaticBaseURL); err != nil {
		return fmt.Errorf("invalid checkout static base url: %w", err)
	}
	return nil
}

// IsRemote 是否使用远程 Casdoor 后端
func (c *Config) IsRemote() bool {
	return c.Casdoor.Endpoint != ""
}

func GetConf() *Config {
	if config == nil {
		panic("config not initialized")
	}
	return config
}
