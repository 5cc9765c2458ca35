package channel

import "fmt"

// Code 验证策略的拒绝码（封闭集合）
//
// 每一种拒绝原因对应一个码，方便调用方精确匹配，也方便测试断言。
// 认证类失败统一归入 CodeAuthentication，不泄露失败细节。
type Code int

const (
	CodeArgsLength                Code = iota + 1 // 参数长度非法
	CodeUnsupportedVersion                        // 版本字节不支持
	CodeUnsupportedAlgorithm                      // 算法标识不支持
	CodeMalformedPlaceholder                      // witness 占位前缀不匹配
	CodeInvalidUnlockType                         // 解锁类型字节非法
	CodeWitnessLength                             // witness 长度不符
	CodeInvalidMultisigDescriptor                 // 多签描述符非法或哈希不匹配
	CodeAuthentication                            // 签名认证失败
	CodeInsufficientSignatures                    // 有效签名数不足
	CodeChannelInputMissing                       // 交易中没有通道输入
	CodeMultipleChannelInputs                     // 通道输入多于一个
	CodeTimeoutNotReached                         // 超时条件未满足
	CodeRefundOutputShape                         // 退款输出结构非法
	CodeUserLockMismatch                          // 退款输出 0 不是用户锁
	CodeMerchantCapacity                          // 商户输出容量不等于最小占用
	CodeExcessiveFee                              // 手续费超出上限
	CodeTokenScriptMismatch                       // 代币类型脚本不一致
	CodeTokenAmount                               // 代币数量不守恒
	CodeAlreadySettled                            // 结算槽位已被填充
)

// Error 验证策略错误
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("channel error [%d]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("channel error [%d]: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is 支持 errors.Is 按拒绝码匹配哨兵错误
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// 哨兵错误：调用方用 errors.Is 匹配拒绝原因
var (
	ErrArgsLength                = &Error{Code: CodeArgsLength, Message: "invalid lock args length"}
	ErrUnsupportedVersion        = &Error{Code: CodeUnsupportedVersion, Message: "unsupported channel version"}
	ErrUnsupportedAlgorithm      = &Error{Code: CodeUnsupportedAlgorithm, Message: "unsupported signature algorithm"}
	ErrMalformedPlaceholder      = &Error{Code: CodeMalformedPlaceholder, Message: "malformed witness placeholder"}
	ErrInvalidUnlockType         = &Error{Code: CodeInvalidUnlockType, Message: "invalid unlock type"}
	ErrWitnessLength             = &Error{Code: CodeWitnessLength, Message: "invalid witness length"}
	ErrInvalidMultisigDescriptor = &Error{Code: CodeInvalidMultisigDescriptor, Message: "invalid multisig descriptor"}
	ErrAuthentication            = &Error{Code: CodeAuthentication, Message: "signature authentication failed"}
	ErrInsufficientSignatures    = &Error{Code: CodeInsufficientSignatures, Message: "insufficient valid signatures"}
	ErrChannelInputMissing       = &Error{Code: CodeChannelInputMissing, Message: "no channel input in transaction"}
	ErrMultipleChannelInputs     = &Error{Code: CodeMultipleChannelInputs, Message: "more than one channel input"}
	ErrTimeoutNotReached         = &Error{Code: CodeTimeoutNotReached, Message: "channel timeout not reached"}
	ErrRefundOutputShape         = &Error{Code: CodeRefundOutputShape, Message: "invalid refund output shape"}
	ErrUserLockMismatch          = &Error{Code: CodeUserLockMismatch, Message: "refund output not locked to user"}
	ErrMerchantCapacity          = &Error{Code: CodeMerchantCapacity, Message: "merchant output capacity must equal its occupied capacity"}
	ErrExcessiveFee              = &Error{Code: CodeExcessiveFee, Message: "transaction fee exceeds the allowed maximum"}
	ErrTokenScriptMismatch       = &Error{Code: CodeTokenScriptMismatch, Message: "token type script mismatch"}
	ErrTokenAmount               = &Error{Code: CodeTokenAmount, Message: "token amount not conserved"}
	ErrAlreadySettled            = &Error{Code: CodeAlreadySettled, Message: "witness already carries a merchant proof"}
)

// newError 在哨兵错误的基础上补充上下文
func newError(sentinel *Error, format string, args ...interface{}) *Error {
	return &Error{
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Err:     fmt.Errorf(format, args...),
	}
}
