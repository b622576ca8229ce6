package models

// StateVector отображение replicaID -> максимальный увиденный clock этой реплики
type StateVector map[string]int64

// Get возвращает clock для реплики (0, если операций не было)
func (sv StateVector) Get(replica string) int64 {
	return sv[replica]
}

// Observe учитывает примененную операцию
func (sv StateVector) Observe(op *Operation) {
	if last := op.LastClock(); last > sv[op.ID.Replica] {
		sv[op.ID.Replica] = last
	}
}

// Covers сообщает, известна ли операция владельцу вектора
func (sv StateVector) Covers(op *Operation) bool {
	return op.LastClock() <= sv[op.ID.Replica]
}

// Clone создает копию вектора
func (sv StateVector) Clone() StateVector {
	c := make(StateVector, len(sv))
	for k, v := range sv {
		c[k] = v
	}
	return c
}

// Max возвращает максимальный clock по всем репликам
func (sv StateVector) Max() int64 {
	var max int64
	for _, v := range sv {
		if v > max {
			max = v
		}
	}
	return max
}
