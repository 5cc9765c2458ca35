package types

// Since 成熟度约束编码
//
// 64 位值的高 8 位是标志位（相对/绝对、度量方式），低 56 位是数值。
// 比较规则：标志位完全一致时才可比较，数值采用大于等于判断。

const (
	// SinceFlagsMask 标志位掩码（高 8 位）
	SinceFlagsMask uint64 = 0xFF00000000000000
	// SinceValueMask 数值掩码（低 56 位）
	SinceValueMask uint64 = 0x00FFFFFFFFFFFFFF

	// SinceFlagRelative 相对约束标志
	SinceFlagRelative uint64 = 0x8000000000000000
	// SinceFlagTimestamp 时间戳度量标志
	SinceFlagTimestamp uint64 = 0x4000000000000000
)

// SinceFlags 提取标志位
func SinceFlags(since uint64) uint64 {
	return since & SinceFlagsMask
}

// SinceValue 提取数值部分
func SinceValue(since uint64) uint64 {
	return since & SinceValueMask
}

// SinceReached 判断 since 是否满足 target 要求的成熟度
//
// 标志位不一致视为不满足（不可比较的度量方式不能放行）
func SinceReached(since, target uint64) bool {
	if SinceFlags(since) != SinceFlags(target) {
		return false
	}
	return SinceValue(since) >= SinceValue(target)
}
