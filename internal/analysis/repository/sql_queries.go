package repository

const (
	createJobQuery = `INSERT INTO analysis_jobs (user_id, video_url, stroke_type, crop_region, target_point, step, request_payload, status)
					VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending') RETURNING *`

	getJobByIDQuery = `SELECT job_id, user_id, video_url, stroke_type, crop_region, target_point, step, request_payload, status,
						worker_job_id, result, result_video_url, error_message, processing_time_sec, total_frames, created_at, updated_at
					FROM analysis_jobs WHERE job_id = $1`

	findActiveJobQuery = `SELECT job_id, user_id, video_url, stroke_type, crop_region, target_point, step, request_payload, status,
						worker_job_id, result, result_video_url, error_message, processing_time_sec, total_frames, created_at, updated_at
					FROM analysis_jobs
					WHERE split_part(video_url, '?', 1) = $1
					  AND status IN ('pending', 'processing')
					  AND created_at >= $2
					  AND user_id IS NOT DISTINCT FROM $3::uuid
					ORDER BY created_at DESC LIMIT 1`

	getJobsByUserQuery = `SELECT job_id, user_id, video_url, stroke_type, crop_region, target_point, step, request_payload, status,
						worker_job_id, result, result_video_url, error_message, processing_time_sec, total_frames, created_at, updated_at
					FROM analysis_jobs WHERE user_id = $1 ORDER BY created_at DESC OFFSET $2 LIMIT $3`

	getTotalJobsByUserQuery = `SELECT COUNT(job_id) FROM analysis_jobs WHERE user_id = $1`

	markProcessingQuery = `UPDATE analysis_jobs
					SET status = 'processing', worker_job_id = $2, updated_at = now()
					WHERE job_id = $1 AND status = 'pending'`

	completeJobQuery = `UPDATE analysis_jobs
					SET status = 'completed', result = $2, result_video_url = $3,
						processing_time_sec = $4, total_frames = $5, updated_at = now()
					WHERE job_id = $1 AND status NOT IN ('completed', 'failed')`

	failJobQuery = `UPDATE analysis_jobs
					SET status = 'failed', error_message = $2, updated_at = now()
					WHERE job_id = $1 AND status NOT IN ('completed', 'failed')`
)
