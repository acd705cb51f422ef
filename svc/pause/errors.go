package pause

import "errors"

var ErrInvalidDuration = errors.New("invalid pause duration")
