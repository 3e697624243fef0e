/*
MIT License

Copyright (c) 2023 Frank Oh

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package echo_record_cache

import (
	"net/url"
	"strings"
)

// User is the reference record the example server caches.
type User struct {
	ID    Key    `json:"id" msgpack:"id" yaml:"id"`
	Name  string `json:"name" msgpack:"name" yaml:"name"`
	Email string `json:"email" msgpack:"email" yaml:"email"`
}

// Validate rejects users without a name.
func (u User) Validate() error {
	if strings.TrimSpace(u.Name) == "" {
		return invalidInput("user name is required")
	}
	return nil
}

// RecordKey returns the user's ID.
func (u User) RecordKey() Key {
	return u.ID
}

// WithKey returns a copy of u carrying key as its ID.
func (u User) WithKey(key Key) User {
	u.ID = key
	return u
}

// SeedUsers is the sample data the example server starts with.
func SeedUsers() map[Key]User {
	return map[Key]User{
		1: {ID: 1, Name: "Alice", Email: "alice@example.com"},
		2: {ID: 2, Name: "Bob", Email: "bob@example.com"},
		3: {ID: 3, Name: "Charlie", Email: "charlie@example.com"},
	}
}

// UserFromQuery builds a user from the name and email query parameters.
// The bool is false when neither is present.
func UserFromQuery(key Key, query url.Values) (User, bool) {
	if !query.Has("name") && !query.Has("email") {
		return User{}, false
	}
	return User{ID: key, Name: query.Get("name"), Email: query.Get("email")}, true
}
