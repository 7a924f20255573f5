// Package autoload initializes the global logger from environment variables
// when blank-imported.
package autoload

import (
	"github.com/kelseyhightower/envconfig"

	logx "github.com/abhiabhi150614/Post-Discharge-Medical-AI-Assistant/pkg/logger"
)

func init() {
	var conf logx.Config
	if err := envconfig.Process("LOG", &conf); err != nil {
		logx.Init()
		return
	}
	logx.Init(conf)
}
