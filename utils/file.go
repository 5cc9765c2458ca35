package utils

import (
	"encoding/json"
	"fmt"
	"os"
)

// 本地持久化共用的文件助手。通道记录与 Keystore 都是单文件 JSON：
// 写入必须原子，读到写了一半的文件比读不到更糟。

// WriteFileAtomic 原子写入文件
//
// 先写同目录临时文件再改名覆盖目标，进程中途退出不会留下残缺文件。
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit file: %w", err)
	}
	return nil
}

// WriteJSONFileAtomic 将 v 编码为缩进 JSON 并原子写入
func WriteJSONFileAtomic(path string, v interface{}, perm os.FileMode) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return WriteFileAtomic(path, data, perm)
}

// ReadJSONFile 读取并解码 JSON 文件
//
// 文件不存在时返回的错误可用 errors.Is(err, os.ErrNotExist) 识别。
func ReadJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}
