// Copyright 2022 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package sidra implements a client for the aggregate data API of IBGE
// (SIDRA), the Brazilian Institute of Geography and Statistics.
//
// Official documentation is at https://servicodados.ibge.gov.br/api/docs/agregados?versao=3 .
//
// An aggregate (e.g. 1420 for the IPCA consumer price index) is queried for a
// list of periods, variables, localities and classification categories. The
// response is a JSON array of variables, each with a list of results, each
// with a list of series, each being a mapping of period (YYYYMM for monthly
// data) to a decimal value string.
//
// The API is known to rate-limit clients and to return occasional server
// errors. Fetch retries those responses a bounded number of times with a
// fixed pause between attempts, and fails immediately on any other unexpected
// status. When all the attempts are used up, Fetch returns no data and no
// error, leaving it to the caller to end the run quietly.
//
// Flatten converts the nested response into a flat list of db.Record values,
// preserving the order of periods as sent by the server.
package sidra
