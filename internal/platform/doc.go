// Package platform isolates operating system specific file access:
// memory mapping, block device sizing, allocation and access hints, and
// recovery from faults raised while touching mapped memory.
package platform
