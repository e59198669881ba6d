// Command crudrouter serves REST resources described by schemas: every
// registered resource gets list, get, create, update and delete routes
// backed by the configured store.
package main

func main() {
	Execute()
}
