package notify

import "errors"

var ErrRenderFailed = errors.New("failed to render notification")
