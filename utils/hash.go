package utils

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
)

// BytesMD5 计算字节数组MD5
func BytesMD5(data []byte) string {
	hash := md5.New()
	hash.Write(data)
	return hex.EncodeToString(hash.Sum(nil))
}

// FingerprintMD5 计算多段数据的联合MD5，段之间写入长度避免拼接歧义
func FingerprintMD5(parts ...[]byte) string {
	hash := md5.New()
	var size [8]byte
	for _, p := range parts {
		binary.BigEndian.PutUint64(size[:], uint64(len(p)))
		hash.Write(size[:])
		hash.Write(p)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
