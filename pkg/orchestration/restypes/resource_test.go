package restypes

import "testing"

func TestRequirements_FitsIn(t *testing.T) {
	r := Requirements{CPU: 2, Mem: 512, Bandwidth: 50}

	if !r.FitsIn(2, 512, 50) {
		t.Error("exact fit should satisfy FitsIn")
	}
	if r.FitsIn(1, 512, 50) {
		t.Error("CPU shortfall should not satisfy FitsIn")
	}
	if !r.FitsIn(2+Epsilon/2, 512, 50) {
		t.Error("within epsilon tolerance should satisfy FitsIn")
	}
}

func TestRequirements_AddSubScale(t *testing.T) {
	a := Requirements{CPU: 2, Mem: 100, Bandwidth: 10}
	b := Requirements{CPU: 1, Mem: 50, Bandwidth: 5}

	sum := a.Add(b)
	if sum != (Requirements{CPU: 3, Mem: 150, Bandwidth: 15}) {
		t.Errorf("Add = %+v", sum)
	}

	diff := b.Sub(a)
	if diff != (Requirements{CPU: 0, Mem: 0, Bandwidth: 0}) {
		t.Errorf("Sub should clamp at zero, got %+v", diff)
	}

	scaled := a.Scale(2)
	if scaled != (Requirements{CPU: 4, Mem: 200, Bandwidth: 20}) {
		t.Errorf("Scale = %+v", scaled)
	}
}

func TestCapacity_AllocateRelease(t *testing.T) {
	c := NewCapacity(4, 1000, 100)

	if !c.Allocate(Requirements{CPU: 2, Mem: 400, Bandwidth: 40}) {
		t.Fatal("Allocate should succeed within capacity")
	}
	avail := c.Available()
	if avail.CPU != 2 || avail.Mem != 600 || avail.Bandwidth != 60 {
		t.Errorf("Available after allocate = %+v", avail)
	}

	if c.Allocate(Requirements{CPU: 3, Mem: 0, Bandwidth: 0}) {
		t.Error("Allocate should fail when CPU exceeds availability")
	}

	c.Release(Requirements{CPU: 2, Mem: 400, Bandwidth: 40})
	avail = c.Available()
	if avail.CPU != 4 || avail.Mem != 1000 || avail.Bandwidth != 100 {
		t.Errorf("Available after release = %+v", avail)
	}

	// Release beyond totals must clamp, not overflow.
	c.Release(Requirements{CPU: 100, Mem: 0, Bandwidth: 0})
	if c.Available().CPU != 4 {
		t.Errorf("Release should clamp to totals, got CPU=%v", c.Available().CPU)
	}
}

func TestCapacity_UtilizationAndOverload(t *testing.T) {
	c := NewCapacity(10, 1000, 100)
	c.Allocate(Requirements{CPU: 8, Mem: 0, Bandwidth: 0})

	cpu, mem, bw := c.Utilization()
	if cpu != 0.8 || mem != 0 || bw != 0 {
		t.Errorf("Utilization = (%v, %v, %v)", cpu, mem, bw)
	}

	if !c.IsOverloaded(0.7) {
		t.Error("IsOverloaded should be true when CPU utilization exceeds theta")
	}
	if c.IsOverloaded(0.9) {
		t.Error("IsOverloaded should be false when no axis exceeds theta")
	}
}

func TestResourceKind_String(t *testing.T) {
	cases := map[ResourceKind]string{
		ResourceCPU:       "cpu",
		ResourceMemory:    "memory",
		ResourceBandwidth: "bandwidth",
		ResourceKind(99):  "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}
