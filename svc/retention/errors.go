package retention

import "errors"

var ErrInvalidConfig = errors.New("invalid retention discount config")
