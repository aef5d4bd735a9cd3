// Package lipmaa implements the skip-list sequence arithmetic used to
// build Bamboo's certificate pool. It is one of the "external
// collaborators" of the engine: the core never reasons about the
// numbers directly, only through Linkseq and CertPool.
//
// The construction lands on the landmark sequence T(k) = (3^k-1)/2,
// i.e. 0, 1, 4, 13, 40, 121, ... . Every seqnum n belongs to exactly
// one "level" k, the half-open range (T(k-1), T(k)]. A level-k range
// has 3^(k-1) slots and is divided into three equal thirds:
//
//   - n itself a landmark (T(k)): Linkseq(n) is the previous landmark
//     T(k-1).
//   - n is in the first third: the position behaves exactly like the
//     analogous position one level down, shifted by T(k-1)-T(k-2).
//   - n is in the second or third third: Linkseq(n) jumps back by one
//     or two thirds of the level's width, respectively.
//
// This is what gives the skip list its O(log n) certificate pool.
package lipmaa

// Linkseq returns the sequence number the lipmaa link of seqnum n
// points to. Linkseq(1) is 0 (no link; n=1 is the genesis entry).
func Linkseq(n uint64) uint64 {
	if n <= 1 {
		return 0
	}

	shiftSum := uint64(0)
	cur := n
	for cur != 1 {
		_, tPrevPrev, tPrev, size := levelOf(cur)
		p := cur - tPrev
		if p == size {
			// cur is itself a landmark; jump to the previous one.
			return shiftSum + tPrev
		}

		third := size / 3
		switch (p - 1) / third {
		case 0:
			// First third: recurse into the equivalent smaller
			// structure, one level down.
			shift := tPrev - tPrevPrev
			shiftSum += shift
			cur -= shift
		case 1:
			return shiftSum + (cur - third)
		default: // 2
			return shiftSum + (cur - 2*third)
		}
	}
	return shiftSum
}

// levelOf finds the level k such that T(k-1) < n <= T(k), where
// T(j) = (3^j-1)/2, and returns k, T(k-2), T(k-1) and the level's
// width 3^(k-1). n must be >= 2.
func levelOf(n uint64) (k int, tPrevPrev, tPrev, size uint64) {
	k = 1
	tPrevPrev, tPrev, size, tCur := uint64(0), uint64(0), uint64(1), uint64(1)
	for tCur < n {
		tPrevPrev = tPrev
		tPrev = tCur
		size *= 3
		tCur = tPrev + size
		k++
	}
	return k, tPrevPrev, tPrev, size
}

// CertPool returns the certificate pool for seqnum n: the strictly
// decreasing sequence obtained by repeatedly applying Linkseq starting
// from n, ending at 1, and excluding n itself. CertPool(1) is empty:
// the genesis entry requires no supporting chain.
func CertPool(n uint64) []uint64 {
	if n <= 1 {
		return nil
	}
	pool := make([]uint64, 0, 8)
	s := Linkseq(n)
	for s >= 1 {
		pool = append(pool, s)
		if s == 1 {
			break
		}
		s = Linkseq(s)
	}
	return pool
}
