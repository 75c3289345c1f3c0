package gateway

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// FieldError は1つの入力フィールドに対する検証エラー。
// クライアント側でのフィールド単位のエラー表示に使う。
type FieldError struct {
	// Field はJSONフィールド名。
	Field string `json:"field"`
	// Message は人間可読のエラーメッセージ。サーバー内部の情報は含まない。
	Message string `json:"message"`
}

// validate はリクエスト構造体の検証に使う共有バリデーター。
var validate = newValidator()

// newValidator はJSONタグ名でエラーを報告するバリデーターを生成する。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct は構造体を検証し、違反したフィールドをすべて列挙して返す。
// 最初の違反だけでなく全フィールドのエラーを返すため、クライアントは
// フォーム全体のエラー表示を一度の送信で組み立てられる。
func validateStruct(s any) []FieldError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "", Message: "Invalid request."}}
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{
			Field:   fe.Field(),
			Message: validationMessage(fe),
		})
	}
	return details
}

// validationMessage は検証タグごとのエラーメッセージを返す。
func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Must be a valid email address."
	case "max":
		return fmt.Sprintf("Must be at most %s characters long.", fe.Param())
	case "uuid4":
		return "Must be a valid UUID."
	default:
		return "Invalid value."
	}
}
