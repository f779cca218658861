package model

import "errors"

// 错误分类
var (
	ErrNoSession      = errors.New("session not found")
	ErrSheetNotLoaded = errors.New("sheet not loaded")
	ErrUnknownSheet   = errors.New("unknown sheet")
	ErrInvalidUpload  = errors.New("invalid upload")
	ErrInvalidChange  = errors.New("invalid change")
	ErrStaleRequest   = errors.New("stale request")
)
