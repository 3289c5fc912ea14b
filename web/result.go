// Copyright 2016-2019 DutchSec (https://dutchsec.com/)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package web

import (
	"github.com/gin-gonic/gin"
)

// result is the envelope of every response. Count is only set for lists.
type result struct {
	Code  int         `json:"code"`
	Msg   string      `json:"msg"`
	Data  interface{} `json:"data,omitempty"`
	Count *int        `json:"count,omitempty"`
}

func render(c *gin.Context, data interface{}) {
	c.JSON(200, result{Code: 0, Msg: "ok", Data: data})
}

func renderList(c *gin.Context, data interface{}, count int) {
	c.JSON(200, result{Code: 0, Msg: "ok", Data: data, Count: &count})
}

func renderError(c *gin.Context, status int, err error) {
	log.Debugf("request failed: %s", err)
	c.AbortWithStatusJSON(status, result{Code: -1, Msg: err.Error()})
}
