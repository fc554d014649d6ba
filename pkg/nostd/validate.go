package nostd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"
)

// CustomValidator echo与配置共用的参数校验器，错误信息经翻译后可直接展示
type CustomValidator struct {
	Validator *validator.Validate
	trans     ut.Translator
}

// TransInit 初始化英文翻译器
func (v *CustomValidator) TransInit() error {
	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)

	trans, ok := uni.GetTranslator("en")
	if !ok {
		return fmt.Errorf("translator not found for locale en")
	}
	v.trans = trans

	return entrans.RegisterDefaultTranslations(v.Validator, trans)
}

// Validate 校验结构体，汇总所有字段错误
func (v *CustomValidator) Validate(i interface{}) error {
	err := v.Validator.Struct(i)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || v.trans == nil {
		return err
	}

	messages := make([]string, 0, len(errs))
	for _, fe := range errs {
		messages = append(messages, fe.Translate(v.trans))
	}
	return fmt.Errorf("%s", strings.Join(messages, "; "))
}
