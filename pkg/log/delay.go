// Copyright 2019-2020 Intel Corporation. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package log

import (
	"fmt"
)

// Delayed implements delayed evaluation (can lower the overhead of suppressed log.Debug).
type Delayed interface {
	String() string
}

// delay implements Delayed.
type delay struct {
	o interface{}
}

// Delay wraps its argument for delayed .String() evaluation.
func Delay(o interface{}) Delayed {
	return &delay{o: o}
}

// String implements stringification of the delayed argument.
func (d *delay) String() string {
	switch o := d.o.(type) {
	case func() string:
		return o()
	case func() interface{}:
		return fmt.Sprintf("%v", o())
	case string:
		return o
	default:
		return fmt.Sprintf("%v", o)
	}
}
