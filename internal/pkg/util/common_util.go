package util

import (
	"sort"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParseObjectID 解析 24 位十六进制 ID
func ParseObjectID(hex string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// ParseUint64 解析十进制用户 ID，0 视为非法
func ParseUint64(s string) (uint64, bool) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, false
	}
	return v, true
}

// UniqueUint64s 去重并升序排列
func UniqueUint64s(ids []uint64) []uint64 {
	set := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := set[id]; ok {
			continue
		}
		set[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ContainsUint64 判断 id 是否在切片中
func ContainsUint64(ids []uint64, id uint64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
