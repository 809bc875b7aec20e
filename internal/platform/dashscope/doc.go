// Package dashscope implements generation.Adapter for Alibaba DashScope's
// native text-generation API. DashScope has no Go SDK; requests go over
// plain HTTP and server-sent event frames are decoded with the openai-go
// ssestream package.
//
// Stream content is cumulative: requests set incremental_output=false.
package dashscope
