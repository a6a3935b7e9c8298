package mem

import "testing"

func TestPhysPageNumRoundTrip(t *testing.T) {
	for i := uint64(0); i < 1024; i++ {
		addr := PhysAddr(i * uint64(PageSize))
		if got := addr.Floor().Addr(); got != addr {
			t.Fatalf("PhysPageNum round trip broke for page %d: got %x want %x", i, got, addr)
		}
	}
}

func TestVirtAddrFloorPlusOffset(t *testing.T) {
	specs := []uint64{0, 1, 4095, 4096, 4097, 0x3fff_ffff}
	for _, v := range specs {
		addr := VirtAddr(v)
		reconstructed := VirtAddr(uint64(addr.Floor().Addr()) + addr.PageOffset())
		if reconstructed != addr {
			t.Errorf("expected floor()+offset to reconstruct %x, got %x", addr, reconstructed)
		}
	}
}

func TestVirtPageNumIndexes(t *testing.T) {
	// VPN with root=1, mid=2, leaf=3
	vpn := VirtPageNum((uint64(1) << 18) | (uint64(2) << 9) | 3)
	idx := vpn.Indexes()
	if idx != [3]uint64{1, 2, 3} {
		t.Errorf("expected indexes [1 2 3], got %v", idx)
	}
}

func TestCeilOfAlignedAddressIsItself(t *testing.T) {
	addr := PhysAddr(4 * uint64(PageSize))
	if got := addr.Ceil(); got != addr.Floor() {
		t.Errorf("expected Ceil() of a page-aligned address to equal Floor(), got %d vs %d", got, addr.Floor())
	}
}
