package notify

type Config struct {
	AppURL      string `env:"APP_URL" envDefault:"http://localhost:8080"`
	ProductName string `env:"PRODUCT_NAME" envDefault:"creditkit"`
}
