package tours

import "errors"

var ErrNotGroupLeader = errors.New("only the group leader or an administrator may do this")
