package svc

import "errors"

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")

// ErrHTTPDisabled 错误：配置未启用 HTTP 接口
var ErrHTTPDisabled = errors.New("http api disabled by config")
