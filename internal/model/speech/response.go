package speech

import "time"

// TTSResponse 语音合成响应，AudioURL 为相对于后端地址的路径
type TTSResponse struct {
	Success  bool   `json:"success"`
	AudioURL string `json:"audio_url,omitempty"`
	Error    string `json:"error,omitempty"`
}

// AudioFile 描述后端临时目录中的一段合成音频
type AudioFile struct {
	Name      string    `json:"name"`
	Path      string    `json:"-"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"createdAt"`
}
