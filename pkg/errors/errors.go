// Package errors はプロジェクト全体のエラーハンドリングと警告システムを提供します。
// メトリクスのルーティングとプロベナンス取得で発生するエラーを構造化された型で表現します。
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("runtrack-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが利用可能な場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// PackageListingWarning はパッケージマネージャの一覧取得に失敗した場合の警告です。
// 実行は継続され、該当するマニフェストは空になります。
type PackageListingWarning struct {
	Manager string
	Reason  string
}

func (w *PackageListingWarning) Error() string {
	return fmt.Sprintf("failed to list %s packages: %s. Continue run without %s packages dumping.", w.Manager, w.Reason, w.Manager)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *PackageListingWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("manager", w.Manager).
		Str("reason", w.Reason).
		Str("type", "PackageListingWarning")
}

// NewPackageListingWarning は新しいPackageListingWarningを作成します。
func NewPackageListingWarning(manager, reason string) *PackageListingWarning {
	return &PackageListingWarning{Manager: manager, Reason: reason}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// ValidationError は入力パラメータの検証に失敗した場合のエラーです。
// `ValueError`よりも具体的なバリデーションロジックの失敗を示します。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("runtrack: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError は引数の値が不適切または不正な場合に発生するエラーです。
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("runtrack: %s: %s", e.Op, e.Message)
}

// NewValueError は新しいValueErrorを作成し、スタックトレースを付与します。
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ScopeError は未知のスコープが指定された場合のエラーです。
// パスが構築できないため、書き込みは一切行われません。
type ScopeError struct {
	Op    string
	Scope string
}

func (e *ScopeError) Error() string {
	return fmt.Sprintf("runtrack: %s: unknown scope %q (want batch, loader, epoch or experiment)", e.Op, e.Scope)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ScopeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("scope", e.Scope).
		Str("type", "ScopeError")
}

// NewScopeError は新しいScopeErrorを作成し、スタックトレースを付与します。
func NewScopeError(op, scope string) error {
	return errors.WithStack(&ScopeError{Op: op, Scope: scope})
}

// BackendError はトラッキングバックエンドとの通信に失敗した場合のエラーです。
// 接続確立時のエラーは致命的で、リトライは行いません。
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("runtrack: %s backend: %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("runtrack: %s backend: %s", e.Backend, e.Op)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// NewBackendError は新しいBackendErrorを作成し、スタックトレースを付与します。
func NewBackendError(backend, op string, err error) error {
	return errors.WithStack(&BackendError{Backend: backend, Op: op, Err: err})
}

// CaptureError はプロベナンス取得の必須ステップが失敗した場合のエラーです。
// ソースコードのスナップショットや設定ファイルのコピーに失敗した場合、実行開始は中断されます。
type CaptureError struct {
	Step string
	Path string
	Err  error
}

func (e *CaptureError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("runtrack: capture %s (%s): %v", e.Step, e.Path, e.Err)
	}
	return fmt.Sprintf("runtrack: capture %s: %v", e.Step, e.Err)
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *CaptureError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("step", e.Step).
		Str("path", e.Path).
		Str("type", "CaptureError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewCaptureError は新しいCaptureErrorを作成し、スタックトレースを付与します。
func NewCaptureError(step, path string, err error) error {
	return errors.WithStack(&CaptureError{Step: step, Path: path, Err: err})
}

// NumericalInstabilityError はメトリクスの値がNaNやInfになった場合のエラーです。
type NumericalInstabilityError struct {
	Operation string    // 発生した操作（例: "log_metrics"）
	Values    []float64 // 問題のある値
	Step      int64     // 発生したステップ
}

func (e *NumericalInstabilityError) Error() string {
	valStr := ""
	for i, v := range e.Values {
		if i > 0 {
			valStr += ", "
		}
		if i >= 5 {
			valStr += "..."
			break
		}
		valStr += fmt.Sprintf("%.6g", v)
	}
	return fmt.Sprintf("runtrack: numerical instability detected in %s at step %d. Values: [%s]",
		e.Operation, e.Step, valStr)
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (e *NumericalInstabilityError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Operation).
		Floats64("values", e.Values).
		Int64("step", e.Step).
		Str("type", "NumericalInstabilityError")
}

// NewNumericalInstabilityError は新しいNumericalInstabilityErrorを作成します。
func NewNumericalInstabilityError(operation string, values []float64, step int64) error {
	err := &NumericalInstabilityError{
		Operation: operation,
		Values:    values,
		Step:      step,
	}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	共通エラー変数
//
// ===========================================================================

var (
	// ErrNotImplemented は機能が未実装の場合のエラーです。
	ErrNotImplemented = New("not implemented")

	// ErrNotFound は要求されたキーやパスが存在しない場合のエラーです。
	ErrNotFound = New("not found")

	// ErrClosed はクローズ済みのシンクに書き込もうとした場合のエラーです。
	ErrClosed = New("sink is closed")
)
