package paging

import (
	"errors"
)

// Destroy tears down the address space without unregistering it from the
// system. Written pages of file mappings are written back first.
func (as *AddressSpace) Destroy() error {
	as.sys.mu.Lock()
	defer as.sys.mu.Unlock()

	return as.destroy()
}

func (as *AddressSpace) destroy() error {
	var errs []error

	for as.mappings.Len() > 0 {
		m, _ := as.mappings.Min()
		errs = append(errs, as.unmap(m))
	}

	for _, p := range as.sortedPages() {
		errs = append(errs, as.remove(p))
	}

	as.sys.pageTable.RemoveProcess(as.pid)
	as.stackBottom = as.sys.layout.UserStackTop

	return errors.Join(errs...)
}

// clear drops every page and mapping without writing anything back. It
// undoes a copy that failed part-way.
func (as *AddressSpace) clear() {
	for _, p := range as.sortedPages() {
		delete(as.pages, p.vaddr)
		as.discardPage(p)
	}

	as.mappings.Ascend(func(m *mapping) bool {
		_ = m.file.Close()
		return true
	})
	as.mappings.Clear(false)

	as.sys.pageTable.RemoveProcess(as.pid)
}
