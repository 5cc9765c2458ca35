package channel

import (
	"bytes"

	"github.com/cellpay/spillman-sdk-go/types"
)

const (
	// MaxFee 超时退款允许的最大手续费（shannon），即 1 个原生单位
	MaxFee uint64 = 100_000_000
)

// Environment 验证策略的环境参数
//
// 退款路径需要识别用户与商户的标准锁，这两个代码哈希随部署环境而定
type Environment struct {
	SighashCodeHash  []byte               // 标准单签锁代码哈希
	SighashHashType  types.ScriptHashType // 标准单签锁引用方式
	MultisigCodeHash []byte               // 标准多签锁代码哈希
	MultisigHashType types.ScriptHashType // 标准多签锁引用方式
	MaxFee           uint64               // 手续费上限，0 表示取默认值 MaxFee
}

func (e *Environment) maxFee() uint64 {
	if e.MaxFee == 0 {
		return MaxFee
	}
	return e.MaxFee
}

// Verify 通道锁验证策略
//
// 纯函数：输入为待验证交易、与 tx.Inputs 一一对应的已解析输入 cell、
// 以及本组通道锁脚本；输出为 nil（接受）或带拒绝码的 *Error（拒绝）。
// 不做任何 I/O，结果确定。
//
// 结算路径只校验双方签名，不约束输出结构：唯一有意义的承诺是金额最高的
// 那份，输出怎么分配由签名本身背书。
// 超时路径校验成熟度、双方预签、退款输出结构、手续费上限与代币守恒。
func (e *Environment) Verify(tx *types.Transaction, resolvedInputs []types.CellWithData, groupLock *types.Script) error {
	channelIndex := -1
	for i := range resolvedInputs {
		if resolvedInputs[i].Output.Lock.Equal(groupLock) {
			if channelIndex >= 0 {
				return newError(ErrMultipleChannelInputs, "inputs %d and %d", channelIndex, i)
			}
			channelIndex = i
		}
	}
	if channelIndex < 0 {
		return ErrChannelInputMissing
	}
	channelCell := &resolvedInputs[channelIndex]

	params, err := ParseArgs(groupLock.Args)
	if err != nil {
		return err
	}

	if channelIndex >= len(tx.Witnesses) {
		return newError(ErrWitnessLength, "no witness at input %d", channelIndex)
	}
	witness, err := ParseWitness(tx.Witnesses[channelIndex], params.Algorithm)
	if err != nil {
		return err
	}

	message := CanonicalMessage(tx)

	if err := e.verifySignatures(message, params, witness); err != nil {
		return err
	}

	if witness.UnlockType == UnlockSettlement {
		return nil
	}
	return e.verifyRefund(tx, resolvedInputs, channelIndex, channelCell, params)
}

// verifySignatures 两条路径共用的双方签名校验
func (e *Environment) verifySignatures(message []byte, params *Parameters, w *Witness) error {
	if params.Algorithm.IsMultisig() {
		if err := VerifyMultisig(message, w.Descriptor, w.MerchantSignatures, params.MerchantIdentity); err != nil {
			return err
		}
	} else {
		if err := VerifySingleSignature(message, w.MerchantSignatures[0], params.MerchantIdentity); err != nil {
			return err
		}
	}
	return VerifySingleSignature(message, w.UserSignature, params.UserIdentity)
}

// verifyRefund 超时路径的成熟度、输出结构、手续费与代币检查
func (e *Environment) verifyRefund(tx *types.Transaction, resolvedInputs []types.CellWithData, channelIndex int, channelCell *types.CellWithData, params *Parameters) error {
	if !types.SinceReached(tx.Inputs[channelIndex].Since, params.Timeout) {
		return newError(ErrTimeoutNotReached, "input since %#x, channel timeout %#x",
			tx.Inputs[channelIndex].Since, params.Timeout)
	}

	if len(tx.Outputs) == 0 || len(tx.Outputs) > 2 {
		return newError(ErrRefundOutputShape, "%d outputs, want 1 or 2", len(tx.Outputs))
	}

	userLock := &types.Script{
		CodeHash: e.SighashCodeHash,
		HashType: e.SighashHashType,
		Args:     params.UserIdentity,
	}
	if !tx.Outputs[0].Lock.Equal(userLock) {
		return ErrUserLockMismatch
	}

	if len(tx.Outputs) == 2 {
		merchantLock := &types.Script{
			CodeHash: e.SighashCodeHash,
			HashType: e.SighashHashType,
			Args:     params.MerchantIdentity,
		}
		if params.Algorithm.IsMultisig() {
			merchantLock.CodeHash = e.MultisigCodeHash
			merchantLock.HashType = e.MultisigHashType
		}
		if !tx.Outputs[1].Lock.Equal(merchantLock) {
			return newError(ErrRefundOutputShape, "output 1 not locked to merchant")
		}
		occupied := types.OccupiedCapacity(tx.Outputs[1].Lock, tx.Outputs[1].Type, len(outputData(tx, 1)))
		if tx.Outputs[1].Capacity != occupied {
			return newError(ErrMerchantCapacity, "capacity %d, occupied %d", tx.Outputs[1].Capacity, occupied)
		}
	}

	var inputSum, outputSum uint64
	for i := range resolvedInputs {
		inputSum += resolvedInputs[i].Output.Capacity
	}
	for i := range tx.Outputs {
		outputSum += tx.Outputs[i].Capacity
	}
	if inputSum > outputSum && inputSum-outputSum > e.maxFee() {
		return newError(ErrExcessiveFee, "fee %d, max %d", inputSum-outputSum, e.maxFee())
	}

	return e.verifyTokenRefund(tx, channelCell)
}

// verifyTokenRefund 代币通道的类型脚本与数量守恒检查
func (e *Environment) verifyTokenRefund(tx *types.Transaction, channelCell *types.CellWithData) error {
	tokenType := channelCell.Output.Type

	for i := range tx.Outputs {
		if tokenType == nil {
			if tx.Outputs[i].Type != nil {
				return newError(ErrTokenScriptMismatch, "output %d carries a type script on a plain channel", i)
			}
			continue
		}
		if !tx.Outputs[i].Type.Equal(tokenType) {
			return newError(ErrTokenScriptMismatch, "output %d", i)
		}
	}
	if tokenType == nil {
		return nil
	}

	// 用户输出必须原样带回全部代币
	if !bytes.Equal(outputData(tx, 0), channelCell.Data) {
		return newError(ErrTokenAmount, "user output data differs from channel cell data")
	}

	if len(tx.Outputs) == 2 {
		amount, err := types.DecodeTokenAmount(outputData(tx, 1))
		if err != nil {
			return newError(ErrTokenAmount, "merchant output: %v", err)
		}
		if amount.Sign() != 0 {
			return newError(ErrTokenAmount, "merchant output carries %s tokens, want 0", amount)
		}
	}
	return nil
}

func outputData(tx *types.Transaction, i int) []byte {
	if i < len(tx.OutputsData) {
		return tx.OutputsData[i]
	}
	return nil
}
