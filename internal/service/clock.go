package service

import "time"

// nowFunc 与 Mongo 的毫秒精度对齐
var nowFunc = func() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
