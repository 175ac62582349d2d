// Copyright 2025 Raywall Malheiros de Souza
// Licensed under the Mozilla Public License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	https://www.mozilla.org/en-US/MPL/2.0/
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fast_service_stubber grava e reproduz jornadas HTTP.
//
// Visão Geral:
// O stubber fica entre a aplicação sob teste e os backends reais. Uma jornada
// é uma sequência nomeada de chamadas:
//  1. Gravação: GET /record/{jornada}/{backend} ativa o modo de captura. Cada
//     requisição seguinte é repassada ao backend e a resposta é salva em disco
//     (artefato + manifesto journey.json).
//  2. Reprodução: GET /play/{jornada} carrega o manifesto e passa a devolver as
//     respostas gravadas, cada uma no máximo uma vez, na ordem da gravação.
//  3. Status: GET /status devolve a jornada ativa e o manifesto com o campo
//     played de cada chamada.
//
// Sub-Pacotes Principais:
//
// 1. pkg/backend:
//   - Registry de backends (nome, URL, match, parseUrl, parseBody).
//   - Backends declarativos via YAML, com expressões CEL e regras regex.
//
// 2. pkg/journey:
//   - Store (diretórios, artefatos e manifesto), Machine (estado corrente),
//     Recorder, Player e Dispatcher.
//
// 3. pkg/engine:
//   - Carregamento de configuração (arquivo, S3, DynamoDB) e montagem do servidor.
//
// 4. pkg/transport:
//   - Rotas gorilla/mux e controle remoto por fila SQS.
//
// Exemplo de Início Rápido:
//
//	version: "1.0"
//	service:
//	  name: "meu-stubber"
//	  port: 8080
//	  journey_path: "journeys"
//	backends:
//	  - name: jsonplaceholder
//	    url: "http://jsonplaceholder.typicode.com/"
//
//	$ stubber serve --config stubber.yaml
//	$ curl localhost:8080/record/demo/jsonplaceholder
//	$ curl localhost:8080/todos/1
//	$ curl localhost:8080/play/demo
//	$ curl localhost:8080/todos/1
//
// Registro programático: veja examples/jsonplaceholder.
package fast_service_stubber
