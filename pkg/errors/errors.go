// Package errors 提供對戰服務的錯誤分類
//
// 所有從 manager 邊界返回的錯誤都是 *AppError，呼叫方透過錯誤碼判斷類別，
// 不需要比對錯誤訊息字串。
package errors

import (
	"errors"
	"fmt"
)

// 定義錯誤碼
const (
	// ErrCodeNotFound 對戰不存在
	ErrCodeNotFound = "NOT_FOUND"
	// ErrCodeNotParticipant 操作者不是對戰中的玩家
	ErrCodeNotParticipant = "NOT_PARTICIPANT"
	// ErrCodeGameFull 對戰已滿
	ErrCodeGameFull = "GAME_FULL"
	// ErrCodeInvalidTransition 當前狀態不允許此操作
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	// ErrCodeInvalidInput 無效輸入
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeInternal 內部錯誤
	ErrCodeInternal = "INTERNAL_ERROR"
)

// AppError 應用程式錯誤
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Err     error  `json:"-"`
}

// Error 實現 error 介面
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap 實現 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is 以錯誤碼比對，讓 errors.Is(err, ErrMatchNotFound) 對帶有細節的副本也成立
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// New 創建新的應用程式錯誤
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包裝錯誤
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetails 返回帶有詳細資訊的副本（預定義錯誤是共用的，不能原地修改）
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// 預定義錯誤
var (
	// ErrMatchNotFound 對戰不存在
	ErrMatchNotFound = New(ErrCodeNotFound, "match not found")

	// ErrPlayerNotInGame 玩家不在此對戰中
	ErrPlayerNotInGame = New(ErrCodeNotParticipant, "player not in game")

	// ErrGameFull 對戰已滿
	ErrGameFull = New(ErrCodeGameFull, "game is full")

	// ErrGameAlreadyStarted 對戰已開始，規則不可再修改
	ErrGameAlreadyStarted = New(ErrCodeInvalidTransition, "game already started")

	// ErrInvalidSettings 設定值超出允許範圍
	ErrInvalidSettings = New(ErrCodeInvalidInput, "invalid settings")

	// ErrInvalidDirection 無效的移動方向
	ErrInvalidDirection = New(ErrCodeInvalidInput, "invalid direction")
)

// Code 取出錯誤碼，非 AppError 一律視為內部錯誤
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsNotFound 檢查是否為未找到錯誤
func IsNotFound(err error) bool {
	return err != nil && Code(err) == ErrCodeNotFound
}

// IsNotParticipant 檢查是否為非參與者錯誤
func IsNotParticipant(err error) bool {
	return err != nil && Code(err) == ErrCodeNotParticipant
}

// IsGameFull 檢查是否為對戰已滿錯誤
func IsGameFull(err error) bool {
	return err != nil && Code(err) == ErrCodeGameFull
}

// IsInvalidTransition 檢查是否為狀態不允許錯誤
func IsInvalidTransition(err error) bool {
	return err != nil && Code(err) == ErrCodeInvalidTransition
}

// IsInvalidInput 檢查是否為無效輸入錯誤
func IsInvalidInput(err error) bool {
	return err != nil && Code(err) == ErrCodeInvalidInput
}
