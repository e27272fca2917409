package env

import (
	"github.com/boilerio/boilerio/internal/config"
)

var Cfg *config.Config
