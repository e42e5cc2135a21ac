package lock

import (
	"sync"
)

// KeyedMutex 按键懒创建的互斥锁集合，用于将同一钱包/订单上的
// 读-改-写序列串行化，不同键之间完全并行。
// 锁句柄创建后不回收，键空间(钱包ID、订单ID)是有界的。
type KeyedMutex struct {
	locks sync.Map // key -> *sync.Mutex
}

// NewKeyedMutex 创建新的键锁集合
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// Lock 获取指定键的互斥锁，返回对应的解锁函数
func (k *KeyedMutex) Lock(key string) func() {
	v, _ := k.locks.LoadOrStore(key, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
